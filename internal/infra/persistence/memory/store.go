// Package memory provides an in-memory implementation of the plot ledger
// store used for tests, ephemeral environments and as the transactional
// engine behind the durable backends.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"plotledger/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// OwnershipRecord aliases domain.OwnershipRecord.
	OwnershipRecord = domain.OwnershipRecord
	// ZoneMetadata aliases domain.ZoneMetadata.
	ZoneMetadata = domain.ZoneMetadata
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// Snapshot is the serializable form of the ledger used by durable backends.
type Snapshot struct {
	Records  []OwnershipRecord       `json:"records"`
	Holes    map[uint64][]uint64     `json:"holes"`
	Prices   map[uint64]uint64       `json:"prices"`
	Metadata map[uint64]ZoneMetadata `json:"metadata"`
	Proceeds map[string]uint64       `json:"proceeds"`
	Fees     uint64                  `json:"fees"`
}

type memoryState struct {
	records  []OwnershipRecord
	holes    map[uint64][]uint64
	prices   map[uint64]uint64
	metadata map[uint64]ZoneMetadata
	proceeds map[string]uint64
	fees     uint64
}

func newMemoryState() memoryState {
	return memoryState{
		holes:    make(map[uint64][]uint64),
		prices:   make(map[uint64]uint64),
		metadata: make(map[uint64]ZoneMetadata),
		proceeds: make(map[string]uint64),
	}
}

// clone copies the mutable maps. Records and hole lists are append-only, so
// they are shared with capacity clipped to length: an append inside a
// transaction reallocates instead of writing into committed memory.
func (s memoryState) clone() memoryState {
	cloned := memoryState{
		records:  s.records[:len(s.records):len(s.records)],
		holes:    make(map[uint64][]uint64, len(s.holes)),
		prices:   make(map[uint64]uint64, len(s.prices)),
		metadata: make(map[uint64]ZoneMetadata, len(s.metadata)),
		proceeds: make(map[string]uint64, len(s.proceeds)),
		fees:     s.fees,
	}
	for k, v := range s.holes {
		cloned.holes[k] = v[:len(v):len(v)]
	}
	for k, v := range s.prices {
		cloned.prices[k] = v
	}
	for k, v := range s.metadata {
		cloned.metadata[k] = v
	}
	for k, v := range s.proceeds {
		cloned.proceeds[k] = v
	}
	return cloned
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := state.clone()
	holes := make(map[uint64][]uint64, len(s.holes))
	for k, v := range s.holes {
		holes[k] = append([]uint64(nil), v...)
	}
	return Snapshot{
		Records:  append([]OwnershipRecord(nil), s.records...),
		Holes:    holes,
		Prices:   s.prices,
		Metadata: s.metadata,
		Proceeds: s.proceeds,
		Fees:     s.fees,
	}
}

func memoryStateFromSnapshot(snapshot Snapshot) (memoryState, error) {
	state := newMemoryState()
	count := uint64(len(snapshot.Records))
	for i, rec := range snapshot.Records {
		if rec.ID != uint64(i) {
			return memoryState{}, fmt.Errorf("snapshot record at position %d has id %d", i, rec.ID)
		}
	}
	state.records = append([]OwnershipRecord(nil), snapshot.Records...)
	for id, holes := range snapshot.Holes {
		if id >= count {
			return memoryState{}, fmt.Errorf("snapshot holes reference unknown record %d", id)
		}
		for _, h := range holes {
			if h <= id || h >= count {
				return memoryState{}, fmt.Errorf("snapshot hole %d of record %d out of order", h, id)
			}
		}
		if len(holes) > 0 {
			state.holes[id] = append([]uint64(nil), holes...)
		}
	}
	for id, price := range snapshot.Prices {
		if id >= count {
			return memoryState{}, fmt.Errorf("snapshot price references unknown record %d", id)
		}
		if price > 0 {
			state.prices[id] = price
		}
	}
	for id, meta := range snapshot.Metadata {
		if id >= count {
			return memoryState{}, fmt.Errorf("snapshot metadata references unknown record %d", id)
		}
		state.metadata[id] = meta
	}
	for owner, amount := range snapshot.Proceeds {
		if amount > 0 {
			state.proceeds[owner] = amount
		}
	}
	state.fees = snapshot.Fees
	return state, nil
}

// CommitHook receives the candidate state of a transaction after the rules
// pass and before it becomes visible. An error discards the transaction.
type CommitHook func(ctx context.Context, snapshot Snapshot) error

// Store provides an in-memory transactional store for the ledger.
type Store struct {
	mu       sync.RWMutex
	state    memoryState
	engine   *RulesEngine
	nowFn    func() time.Time
	onCommit CommitHook
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot. The
// snapshot must describe a densely numbered arena with forward-pointing holes.
func (s *Store) ImportState(snapshot Snapshot) error {
	state, err := memoryStateFromSnapshot(snapshot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc replaces the time provider stamped onto new records.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// SetCommitHook installs fn to run under the write lock before every commit.
// Durable backends use it to persist state before it is published.
func (s *Store) SetCommitHook(fn CommitHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCommit = fn
}

type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) RecordCount() uint64 { return uint64(len(v.state.records)) }

func (v transactionView) FindRecord(id uint64) (OwnershipRecord, bool) {
	if id >= uint64(len(v.state.records)) {
		return OwnershipRecord{}, false
	}
	return v.state.records[id], true
}

func (v transactionView) Holes(id uint64) []uint64 {
	return append([]uint64(nil), v.state.holes[id]...)
}

func (v transactionView) Price(id uint64) uint64 { return v.state.prices[id] }

func (v transactionView) Metadata(id uint64) (ZoneMetadata, bool) {
	m, ok := v.state.metadata[id]
	return m, ok
}

func (v transactionView) Proceeds(owner string) uint64 { return v.state.proceeds[owner] }

func (v transactionView) Fees() uint64 { return v.state.fees }

// RunInTransaction executes fn against a private copy of the state, evaluates
// the rules engine over the recorded changes and commits only if both succeed.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil && len(tx.changes) > 0 {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if s.onCommit != nil && len(tx.changes) > 0 {
		if err := s.onCommit(context.WithoutCancel(ctx), snapshotFromMemoryState(tx.state)); err != nil {
			return result, fmt.Errorf("persist snapshot: %w", err)
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against the committed state under the read lock.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.state
	return fn(newTransactionView(&state))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) exists(id uint64) bool {
	return id < uint64(len(tx.state.records))
}

// AppendRecord assigns the next arena position to rec.
func (tx *transaction) AppendRecord(rec OwnershipRecord) (OwnershipRecord, error) {
	rec.ID = uint64(len(tx.state.records))
	rec.CreatedAt = tx.now
	tx.state.records = append(tx.state.records, rec)
	tx.recordChange(Change{Entity: domain.EntityRecord, Action: domain.ActionCreate, After: rec})
	return rec, nil
}

// AppendHole links holeID into recordID's hole set.
func (tx *transaction) AppendHole(recordID, holeID uint64) error {
	if !tx.exists(recordID) {
		return fmt.Errorf("record %d: %w", recordID, domain.ErrUnknownRecord)
	}
	if !tx.exists(holeID) {
		return fmt.Errorf("hole record %d: %w", holeID, domain.ErrUnknownRecord)
	}
	tx.state.holes[recordID] = append(tx.state.holes[recordID], holeID)
	tx.recordChange(Change{Entity: domain.EntityHole, Action: domain.ActionAppend, After: domain.HoleLink{RecordID: recordID, HoleID: holeID}})
	return nil
}

// SetPrice replaces the per-unit price of a record.
func (tx *transaction) SetPrice(recordID, price uint64) (uint64, error) {
	if !tx.exists(recordID) {
		return 0, fmt.Errorf("record %d: %w", recordID, domain.ErrUnknownRecord)
	}
	prev := tx.state.prices[recordID]
	if price == 0 {
		delete(tx.state.prices, recordID)
	} else {
		tx.state.prices[recordID] = price
	}
	tx.recordChange(Change{
		Entity: domain.EntityPrice,
		Action: domain.ActionUpdate,
		Before: domain.PriceChange{RecordID: recordID, Price: prev},
		After:  domain.PriceChange{RecordID: recordID, Price: price},
	})
	return prev, nil
}

// AttachMetadata stores metadata for a record exactly once.
func (tx *transaction) AttachMetadata(recordID uint64, meta ZoneMetadata) error {
	if !tx.exists(recordID) {
		return fmt.Errorf("record %d: %w", recordID, domain.ErrUnknownRecord)
	}
	if _, ok := tx.state.metadata[recordID]; ok {
		return fmt.Errorf("record %d: %w", recordID, domain.ErrMetadataExists)
	}
	tx.state.metadata[recordID] = meta
	tx.recordChange(Change{Entity: domain.EntityMetadata, Action: domain.ActionCreate, After: meta})
	return nil
}

// CreditProceeds adds amount to an owner's withdrawable balance.
func (tx *transaction) CreditProceeds(owner string, amount uint64) error {
	prev := tx.state.proceeds[owner]
	next, err := domain.AddAmount(prev, amount)
	if err != nil {
		return fmt.Errorf("proceeds of %s: %w", owner, err)
	}
	tx.state.proceeds[owner] = next
	tx.recordChange(Change{
		Entity: domain.EntityProceeds,
		Action: domain.ActionUpdate,
		Before: domain.Balance{Owner: owner, Amount: prev},
		After:  domain.Balance{Owner: owner, Amount: next},
	})
	return nil
}

// DrainProceeds zeroes and returns an owner's balance.
func (tx *transaction) DrainProceeds(owner string) (uint64, error) {
	amount := tx.state.proceeds[owner]
	if amount == 0 {
		return 0, nil
	}
	delete(tx.state.proceeds, owner)
	tx.recordChange(Change{
		Entity: domain.EntityProceeds,
		Action: domain.ActionUpdate,
		Before: domain.Balance{Owner: owner, Amount: amount},
		After:  domain.Balance{Owner: owner},
	})
	return amount, nil
}

// AddFees adds a purchase residual to the collected fees.
func (tx *transaction) AddFees(amount uint64) error {
	next, err := domain.AddAmount(tx.state.fees, amount)
	if err != nil {
		return fmt.Errorf("fees: %w", err)
	}
	tx.recordChange(Change{
		Entity: domain.EntityFees,
		Action: domain.ActionUpdate,
		Before: domain.Balance{Amount: tx.state.fees},
		After:  domain.Balance{Amount: next},
	})
	tx.state.fees = next
	return nil
}

// DrainFees zeroes and returns the collected fees.
func (tx *transaction) DrainFees() (uint64, error) {
	amount := tx.state.fees
	if amount == 0 {
		return 0, nil
	}
	tx.state.fees = 0
	tx.recordChange(Change{
		Entity: domain.EntityFees,
		Action: domain.ActionUpdate,
		Before: domain.Balance{Amount: amount},
		After:  domain.Balance{},
	})
	return amount, nil
}
