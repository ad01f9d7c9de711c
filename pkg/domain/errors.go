package domain

import "errors"

// ErrorKind groups sentinel errors so callers can tell which class of
// constraint rejected an operation.
type ErrorKind string

// Error kinds returned by KindOf.
const (
	KindBounds        ErrorKind = "bounds"
	KindGeometry      ErrorKind = "geometry"
	KindPricing       ErrorKind = "pricing"
	KindAuthorization ErrorKind = "authorization"
	KindOverflow      ErrorKind = "overflow"
	KindNotFound      ErrorKind = "not_found"
	KindConflict      ErrorKind = "conflict"
	KindRule          ErrorKind = "rule"
	KindUnknown       ErrorKind = "unknown"
)

// Bounds errors.
var (
	ErrZeroSize           = errors.New("rectangle has zero size")
	ErrOutOfBounds        = errors.New("rectangle outside grid")
	ErrPurchaseTooLarge   = errors.New("purchase area exceeds maximum")
	ErrEmptyTiling        = errors.New("tiling is empty")
	ErrPieceOutsideTarget = errors.New("piece not contained in target")
	ErrInvalidMetadata    = errors.New("invalid zone metadata")
)

// Geometry errors.
var (
	ErrNoOverlap                  = errors.New("rectangles do not overlap")
	ErrIncompleteTiling           = errors.New("tiling area does not match target")
	ErrOverlappingPieces          = errors.New("tiling pieces overlap")
	ErrHoleConflict               = errors.New("piece overlaps area already sold")
	ErrOwnershipMismatch          = errors.New("piece not owned by declared record")
	ErrNonContiguousOwnerGrouping = errors.New("pieces of one record are not contiguous")
)

// Pricing errors.
var (
	ErrNotForSale          = errors.New("record not for sale")
	ErrInsufficientPayment = errors.New("payment below total price")
	ErrInsufficientFee     = errors.New("payment leaves insufficient fee")
)

// Authorization errors.
var (
	ErrNotOwner      = errors.New("caller does not own record")
	ErrNotAuthorized = errors.New("caller not authorized")
)

// Remaining errors.
var (
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrUnknownRecord  = errors.New("unknown record")
	ErrLedgerNotEmpty = errors.New("ledger already initialized")
	ErrMetadataExists = errors.New("metadata already attached")
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrZeroSize, KindBounds},
	{ErrOutOfBounds, KindBounds},
	{ErrPurchaseTooLarge, KindBounds},
	{ErrEmptyTiling, KindBounds},
	{ErrPieceOutsideTarget, KindBounds},
	{ErrInvalidMetadata, KindBounds},
	{ErrNoOverlap, KindGeometry},
	{ErrIncompleteTiling, KindGeometry},
	{ErrOverlappingPieces, KindGeometry},
	{ErrHoleConflict, KindGeometry},
	{ErrOwnershipMismatch, KindGeometry},
	{ErrNonContiguousOwnerGrouping, KindGeometry},
	{ErrNotForSale, KindPricing},
	{ErrInsufficientPayment, KindPricing},
	{ErrInsufficientFee, KindPricing},
	{ErrNotOwner, KindAuthorization},
	{ErrNotAuthorized, KindAuthorization},
	{ErrOverflow, KindOverflow},
	{ErrUnknownRecord, KindNotFound},
	{ErrLedgerNotEmpty, KindConflict},
	{ErrMetadataExists, KindConflict},
}

// KindOf classifies err by the first sentinel it wraps.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	var rv RuleViolationError
	if errors.As(err, &rv) {
		return KindRule
	}
	return KindUnknown
}
