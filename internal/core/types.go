package core

import "plotledger/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Rect               = domain.Rect
	Piece              = domain.Piece
	OwnershipRecord    = domain.OwnershipRecord
	ZoneMetadata       = domain.ZoneMetadata
	Event              = domain.Event
	EventKind          = domain.EventKind
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityRecord   = domain.EntityRecord
	EntityHole     = domain.EntityHole
	EntityPrice    = domain.EntityPrice
	EntityMetadata = domain.EntityMetadata
	EntityProceeds = domain.EntityProceeds
	EntityFees     = domain.EntityFees
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionAppend = domain.ActionAppend
	ActionUpdate = domain.ActionUpdate
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// Params fixes the grid and economic parameters of a ledger. They are set at
// construction and never change for the lifetime of a service.
type Params struct {
	GridWidth       uint32
	GridHeight      uint32
	MaxPurchaseArea uint64
	FeeBasisPoints  uint32
	Maintainer      string
}

// DefaultParams returns a 1000x1000 grid with a 1000 cell purchase cap and no fee.
func DefaultParams() Params {
	return Params{
		GridWidth:       1000,
		GridHeight:      1000,
		MaxPurchaseArea: 1000,
	}
}
