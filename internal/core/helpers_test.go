package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"plotledger/internal/infra/persistence/memory"
)

const (
	maintainer   = "admin"
	genesisPrice = 20000
)

var genesisRect = Rect{X: 0, Y: 0, W: 250, H: 250}

func testParams() Params {
	p := DefaultParams()
	p.Maintainer = maintainer
	return p
}

type ledgerFixture struct {
	svc    *Service
	store  *memory.Store
	events *EventRecorder
}

// newLedger builds an in-memory ledger seeded with the 250x250 genesis plot
// owned by the maintainer.
func newLedger(t *testing.T, params Params, opts ...Option) ledgerFixture {
	t.Helper()
	store := memory.NewStore(NewDefaultRulesEngine(params))
	events := &EventRecorder{}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	opts = append([]Option{
		WithEventSink(events),
		WithClock(ClockFunc(func() time.Time { return fixed })),
	}, opts...)
	svc := NewService(store, params, opts...)
	_, err := svc.Genesis(context.Background(), maintainer, genesisRect, genesisPrice, ZoneMetadata{})
	require.NoError(t, err)
	return ledgerFixture{svc: svc, store: store, events: events}
}

func single(target Rect, recordID uint64) []Piece {
	return []Piece{{Rect: target, RecordID: recordID}}
}

type captureLogger struct{ calls []string }

func (c *captureLogger) Debug(msg string, _ ...any) { c.calls = append(c.calls, "d:"+msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.calls = append(c.calls, "i:"+msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.calls = append(c.calls, "w:"+msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.calls = append(c.calls, "e:"+msg) }

func (c *captureLogger) has(prefix string) bool {
	for _, call := range c.calls {
		if strings.HasPrefix(call, prefix) {
			return true
		}
	}
	return false
}
