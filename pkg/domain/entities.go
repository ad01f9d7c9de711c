// Package domain defines the plot ledger's persistent records, value types,
// error taxonomy and rule evaluation primitives used by plotledger.
package domain

import "time"

// EntityType identifies the kind of ledger state touched by a Change.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityRecord identifies an ownership record in the append-only arena.
	EntityRecord EntityType = "record"
	// EntityHole identifies a hole back-reference appended to a record's hole set.
	EntityHole EntityType = "hole"
	// EntityPrice identifies a per-record auction price.
	EntityPrice EntityType = "price"
	// EntityMetadata identifies zone metadata attached to a record.
	EntityMetadata EntityType = "metadata"
	// EntityProceeds identifies a seller's withdrawable proceeds balance.
	EntityProceeds EntityType = "proceeds"
	// EntityFees identifies the maintainer's collected fee balance.
	EntityFees EntityType = "fees"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// OwnershipRecord asserts that Owner acquired Rect at CreatedAt. Records are
// never modified or removed; later sales show up as holes instead.
type OwnershipRecord struct {
	ID        uint64    `json:"id"`
	Rect      Rect      `json:"rect"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}

// ZoneMetadata is attached to a record once, when it is created.
type ZoneMetadata struct {
	ContentRef string `json:"content_ref,omitempty"`
	Link       string `json:"link,omitempty" validate:"omitempty,url"`
}

// IsZero reports whether no metadata was supplied.
func (m ZoneMetadata) IsZero() bool {
	return m.ContentRef == "" && m.Link == ""
}

// Piece is one element of a claimed tiling: a sub-rectangle of the purchase
// target attributed to an existing record.
type Piece struct {
	Rect     Rect   `json:"rect"`
	RecordID uint64 `json:"record_id"`
}

// EventKind names a notification emitted after a committed mutation.
type EventKind string

// Event kinds consumed by external collaborators.
const (
	EventPriceChanged      EventKind = "price_changed"
	EventPlotPurchased     EventKind = "plot_purchased"
	EventPlotSectionSold   EventKind = "plot_section_sold"
	EventFeesWithdrawn     EventKind = "fees_withdrawn"
	EventProceedsWithdrawn EventKind = "proceeds_withdrawn"
)

// Event describes a ledger notification. Fields irrelevant to a kind stay zero.
type Event struct {
	ID           string    `json:"id"`
	Kind         EventKind `json:"kind"`
	RecordID     uint64    `json:"record_id"`
	Amount       uint64    `json:"amount,omitempty"`
	PricePerUnit uint64    `json:"price_per_unit,omitempty"`
	Buyer        string    `json:"buyer,omitempty"`
	Seller       string    `json:"seller,omitempty"`
	Rect         Rect      `json:"rect"`
	At           time.Time `json:"at"`
}

// Change captures a mutation applied within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the mutations the ledger supports. There is no
// delete: the ledger only grows.
const (
	// ActionCreate indicates a record or attachment was created.
	ActionCreate Action = "create"
	// ActionAppend indicates an id was appended to a hole set.
	ActionAppend Action = "append"
	// ActionUpdate indicates a mutable value (price, balance) changed.
	ActionUpdate Action = "update"
)

// HoleLink is the After payload of a hole append change.
type HoleLink struct {
	RecordID uint64
	HoleID   uint64
}

// PriceChange is the Before/After payload of a price update.
type PriceChange struct {
	RecordID uint64
	Price    uint64
}

// Balance is the Before/After payload of proceeds and fee changes.
type Balance struct {
	Owner  string
	Amount uint64
}

// Violation reports a rule outcome.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID uint64
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Rule + ": " + v.Message
		}
	}
	return "transaction blocked by rules"
}
