package domain

import "context"

// Transaction exposes the ledger mutations a persistence implementation must
// support within an atomic scope. Nothing is visible outside the transaction
// until the enclosing RunInTransaction returns without error.
type Transaction interface {
	Snapshot() TransactionView
	// AppendRecord assigns the next id to rec and appends it to the arena.
	AppendRecord(rec OwnershipRecord) (OwnershipRecord, error)
	// AppendHole records holeID as carved out of recordID.
	AppendHole(recordID, holeID uint64) error
	// SetPrice replaces the record's price and returns the previous one.
	SetPrice(recordID, price uint64) (uint64, error)
	// AttachMetadata stores metadata once per record.
	AttachMetadata(recordID uint64, meta ZoneMetadata) error
	CreditProceeds(owner string, amount uint64) error
	// DrainProceeds zeroes the owner's balance and returns it.
	DrainProceeds(owner string) (uint64, error)
	AddFees(amount uint64) error
	// DrainFees zeroes collected fees and returns them.
	DrainFees() (uint64, error)
}

// TransactionView provides read-only access to ledger state.
type TransactionView interface {
	RecordCount() uint64
	FindRecord(id uint64) (OwnershipRecord, bool)
	// Holes returns a copy of the record's hole set in append order.
	Holes(id uint64) []uint64
	Price(id uint64) uint64
	Metadata(id uint64) (ZoneMetadata, bool)
	Proceeds(owner string) uint64
	Fees() uint64
}

// PersistentStore is a minimal abstraction over durable backends.
// RunInTransaction serializes writers; View sees committed state only.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}
