package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	blobcore "plotledger/internal/blob/core"
	"plotledger/internal/infra/persistence/memory"
	"plotledger/pkg/domain"
)

// ErrContentStoreUnavailable is returned by content operations when the
// service was built without a content store.
var ErrContentStoreUnavailable = errors.New("content store not configured")

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now returns the function's time, or the UTC wall clock when nil.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f()
}

// Option customizes a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	events  EventSink
	content blobcore.Store
	clock   Clock
	newID   func() string
}

func defaultOptions() serviceOptions {
	return serviceOptions{
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		events:  discardSink{},
		clock:   ClockFunc(nil),
		newID:   uuid.NewString,
	}
}

// WithLogger sets the structured logger.
func WithLogger(l Logger) Option {
	return func(o *serviceOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsRecorder sets the operation metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the operation tracer.
func WithTracer(t Tracer) Option {
	return func(o *serviceOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithEventSink sets where committed ledger events are delivered.
func WithEventSink(s EventSink) Option {
	return func(o *serviceOptions) {
		if s != nil {
			o.events = s
		}
	}
}

// WithContentStore enables AttachContent and content reference checks.
func WithContentStore(s blobcore.Store) Option {
	return func(o *serviceOptions) { o.content = s }
}

// WithClock overrides the time source for records and events.
func WithClock(c Clock) Option {
	return func(o *serviceOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithIDGenerator overrides how receipt and event IDs are minted.
func WithIDGenerator(fn func() string) Option {
	return func(o *serviceOptions) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// Service exposes the ledger's boundary operations. Every mutation runs in a
// single store transaction; events are published only after it commits.
type Service struct {
	store    PersistentStore
	params   Params
	validate *validator.Validate
	serviceOptions
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, params Params, opts ...Option) *Service {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if clocked, ok := store.(interface{ SetNowFunc(func() time.Time) }); ok {
		clocked.SetNowFunc(o.clock.Now)
	}
	return &Service{
		store:          store,
		params:         params,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		serviceOptions: o,
	}
}

// NewInMemoryService creates a service over a fresh in-memory store guarded by
// the default ledger rules.
func NewInMemoryService(params Params, opts ...Option) *Service {
	return NewService(memory.NewStore(NewDefaultRulesEngine(params)), params, opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Params returns the ledger parameters.
func (s *Service) Params() Params { return s.params }

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		s.logger.Error("ledger operation failed", "operation", op, "kind", string(domain.KindOf(err)), "error", err)
		return err
	}
	s.logger.Debug("ledger operation completed", "operation", op)
	return nil
}

func (s *Service) publish(ctx context.Context, events []Event) {
	now := s.clock.Now()
	for _, evt := range events {
		evt.ID = s.newID()
		evt.At = now
		if err := s.events.Publish(ctx, evt); err != nil {
			s.logger.Warn("event delivery failed", "kind", string(evt.Kind), "record_id", evt.RecordID, "error", err)
		}
	}
}

func (s *Service) checkMetadata(ctx context.Context, meta ZoneMetadata) error {
	if err := s.validate.StructCtx(ctx, meta); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidMetadata, err)
	}
	if meta.ContentRef == "" || s.content == nil {
		return nil
	}
	ok, err := s.content.Has(ctx, meta.ContentRef)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidMetadata, err)
	}
	if !ok {
		return fmt.Errorf("%w: content %s not stored", domain.ErrInvalidMetadata, meta.ContentRef)
	}
	return nil
}

// PurchaseRequest carries the caller-supplied purchase and its tiling proof.
type PurchaseRequest struct {
	Target       Rect         `json:"target"`
	Tiling       []Piece      `json:"tiling"`
	Metadata     ZoneMetadata `json:"metadata"`
	InitialPrice uint64       `json:"initial_price"`
	Payment      uint64       `json:"payment"`
	Buyer        string       `json:"buyer"`
}

// PurchaseReceipt describes a committed purchase.
type PurchaseReceipt struct {
	ID       string   `json:"id"`
	RecordID uint64   `json:"record_id"`
	Total    uint64   `json:"total"`
	Residual uint64   `json:"residual"`
	Fee      uint64   `json:"fee"`
	Payouts  []Payout `json:"payouts"`
}

// Purchase validates the tiling, settles it and records the buyer's plot.
// Either every effect commits or none does.
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest) (PurchaseReceipt, error) {
	var receipt PurchaseReceipt
	err := s.run(ctx, "purchase", func(ctx context.Context) error {
		if req.Buyer == "" {
			return fmt.Errorf("%w: buyer required", domain.ErrNotAuthorized)
		}
		if err := s.checkMetadata(ctx, req.Metadata); err != nil {
			return err
		}
		var events []Event
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			plan, err := Validate(tx.Snapshot(), s.params, req.Target, req.Tiling)
			if err != nil {
				return err
			}
			settled, err := Settle(tx, plan, req.Payment, req.Buyer, s.params.FeeBasisPoints)
			if err != nil {
				return err
			}
			id := settled.Record.ID
			if req.InitialPrice > 0 {
				if _, err := tx.SetPrice(id, req.InitialPrice); err != nil {
					return err
				}
			}
			if !req.Metadata.IsZero() {
				if err := tx.AttachMetadata(id, req.Metadata); err != nil {
					return err
				}
			}
			events = append(settled.Events, Event{
				Kind:         domain.EventPlotPurchased,
				RecordID:     id,
				Amount:       settled.Total,
				PricePerUnit: req.InitialPrice,
				Buyer:        req.Buyer,
				Rect:         req.Target,
			})
			receipt = PurchaseReceipt{
				RecordID: id,
				Total:    settled.Total,
				Residual: settled.Residual,
				Fee:      settled.Fee,
				Payouts:  settled.Payouts,
			}
			return nil
		})
		if err != nil {
			return err
		}
		receipt.ID = s.newID()
		s.publish(ctx, events)
		s.logger.Info("plot purchased", "receipt", receipt.ID, "record_id", receipt.RecordID, "buyer", req.Buyer, "total", receipt.Total)
		return nil
	})
	if err != nil {
		return PurchaseReceipt{}, err
	}
	return receipt, nil
}

// UpdatePrice sets a record's per-unit price on behalf of its owner.
func (s *Service) UpdatePrice(ctx context.Context, recordID, price uint64, caller string) (PriceReceipt, error) {
	var receipt PriceReceipt
	err := s.run(ctx, "update_price", func(ctx context.Context) error {
		var evt Event
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			receipt, evt, err = SetPrice(tx, recordID, price, caller)
			return err
		})
		if err != nil {
			return err
		}
		s.publish(ctx, []Event{evt})
		return nil
	})
	if err != nil {
		return PriceReceipt{}, err
	}
	return receipt, nil
}

// Genesis creates the first record, owned by the maintainer, on an empty ledger.
func (s *Service) Genesis(ctx context.Context, caller string, rect Rect, price uint64, meta ZoneMetadata) (OwnershipRecord, error) {
	var created OwnershipRecord
	err := s.run(ctx, "genesis", func(ctx context.Context) error {
		if !s.isMaintainer(caller) {
			return fmt.Errorf("%w: genesis requires the maintainer", domain.ErrNotAuthorized)
		}
		if err := rect.WithinGrid(s.params.GridWidth, s.params.GridHeight); err != nil {
			return err
		}
		if err := s.checkMetadata(ctx, meta); err != nil {
			return err
		}
		var events []Event
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if n := tx.Snapshot().RecordCount(); n != 0 {
				return fmt.Errorf("%w: %d records", domain.ErrLedgerNotEmpty, n)
			}
			rec, err := tx.AppendRecord(OwnershipRecord{Rect: rect, Owner: caller})
			if err != nil {
				return err
			}
			if !meta.IsZero() {
				if err := tx.AttachMetadata(rec.ID, meta); err != nil {
					return err
				}
			}
			if price > 0 {
				_, evt, err := SetPrice(tx, rec.ID, price, caller)
				if err != nil {
					return err
				}
				events = append(events, evt)
			}
			created = rec
			return nil
		})
		if err != nil {
			return err
		}
		s.publish(ctx, events)
		return nil
	})
	if err != nil {
		return OwnershipRecord{}, err
	}
	return created, nil
}

func (s *Service) isMaintainer(caller string) bool {
	return s.params.Maintainer != "" && caller == s.params.Maintainer
}

// WithdrawFees drains collected fees. Only the maintainer may withdraw, and
// only to itself.
func (s *Service) WithdrawFees(ctx context.Context, destination, caller string) (uint64, error) {
	var amount uint64
	err := s.run(ctx, "withdraw_fees", func(ctx context.Context) error {
		if !s.isMaintainer(caller) || destination != caller {
			return fmt.Errorf("%w: fees are withdrawable by the maintainer to itself", domain.ErrNotAuthorized)
		}
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			amount, err = tx.DrainFees()
			return err
		})
		if err != nil {
			return err
		}
		if amount > 0 {
			s.publish(ctx, []Event{{Kind: domain.EventFeesWithdrawn, Amount: amount, Seller: destination}})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// WithdrawProceeds drains the sale proceeds credited to owner.
func (s *Service) WithdrawProceeds(ctx context.Context, owner string) (uint64, error) {
	var amount uint64
	err := s.run(ctx, "withdraw_proceeds", func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			amount, err = tx.DrainProceeds(owner)
			return err
		})
		if err != nil {
			return err
		}
		if amount > 0 {
			s.publish(ctx, []Event{{Kind: domain.EventProceedsWithdrawn, Amount: amount, Seller: owner}})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// AttachContent stores payload in the content store and returns the
// reference to place in ZoneMetadata.ContentRef.
func (s *Service) AttachContent(ctx context.Context, payload []byte, contentType string) (string, error) {
	var ref string
	err := s.run(ctx, "attach_content", func(ctx context.Context) error {
		if s.content == nil {
			return ErrContentStoreUnavailable
		}
		info, err := s.content.Put(ctx, bytes.NewReader(payload), contentType)
		if err != nil {
			return err
		}
		ref = info.Ref
		return nil
	})
	return ref, err
}

// RecordCount returns the number of records in the arena.
func (s *Service) RecordCount(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.store.View(ctx, func(v TransactionView) error {
		n = v.RecordCount()
		return nil
	})
	return n, err
}

// Record returns the record with the given ID.
func (s *Service) Record(ctx context.Context, recordID uint64) (OwnershipRecord, error) {
	var rec OwnershipRecord
	err := s.store.View(ctx, func(v TransactionView) error {
		var ok bool
		if rec, ok = v.FindRecord(recordID); !ok {
			return fmt.Errorf("%w: %d", domain.ErrUnknownRecord, recordID)
		}
		return nil
	})
	return rec, err
}

// PriceOf returns a record's per-unit price; zero means not for sale.
func (s *Service) PriceOf(ctx context.Context, recordID uint64) (uint64, error) {
	var price uint64
	err := s.viewRecord(ctx, recordID, func(v TransactionView) {
		price = PriceOf(v, recordID)
	})
	return price, err
}

// Holes returns the IDs of records carved out of recordID, oldest first.
func (s *Service) Holes(ctx context.Context, recordID uint64) ([]uint64, error) {
	var holes []uint64
	err := s.viewRecord(ctx, recordID, func(v TransactionView) {
		holes = v.Holes(recordID)
	})
	return holes, err
}

// Metadata returns a record's zone metadata, zero when none was attached.
func (s *Service) Metadata(ctx context.Context, recordID uint64) (ZoneMetadata, error) {
	var meta ZoneMetadata
	err := s.viewRecord(ctx, recordID, func(v TransactionView) {
		meta, _ = v.Metadata(recordID)
	})
	return meta, err
}

// Proceeds returns owner's withdrawable balance.
func (s *Service) Proceeds(ctx context.Context, owner string) (uint64, error) {
	var amount uint64
	err := s.store.View(ctx, func(v TransactionView) error {
		amount = v.Proceeds(owner)
		return nil
	})
	return amount, err
}

// Fees returns the collected, not yet withdrawn fees.
func (s *Service) Fees(ctx context.Context) (uint64, error) {
	var amount uint64
	err := s.store.View(ctx, func(v TransactionView) error {
		amount = v.Fees()
		return nil
	})
	return amount, err
}

func (s *Service) viewRecord(ctx context.Context, recordID uint64, fn func(TransactionView)) error {
	return s.store.View(ctx, func(v TransactionView) error {
		if recordID >= v.RecordCount() {
			return fmt.Errorf("%w: %d", domain.ErrUnknownRecord, recordID)
		}
		fn(v)
		return nil
	})
}
