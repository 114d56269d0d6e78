package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/KARTIKEY-KATYAL/EZ/core"
	"github.com/KARTIKEY-KATYAL/EZ/ports"
)

// MemoryLedger is an in-memory implementation of the GrantLedger interface.
// A single mutex serializes every TryRedeem, which satisfies the
// linearizability requirement for concurrent redemption attempts.
type MemoryLedger struct {
	records map[string]core.GrantRecord
	mu      sync.Mutex
}

// NewMemoryLedger creates a new in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: make(map[string]core.GrantRecord),
	}
}

// Register records a freshly minted grant as issued.
func (l *MemoryLedger) Register(ctx context.Context, rec core.GrantRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.records[rec.Nonce]; exists {
		return core.ErrDuplicateNonce
	}

	rec.State = core.GrantIssued
	l.records[rec.Nonce] = rec
	return nil
}

// TryRedeem atomically checks and consumes the grant for nonce. The check
// and the state flip happen under one lock hold, so two racing attempts
// can never both succeed.
func (l *MemoryLedger) TryRedeem(ctx context.Context, nonce string, now time.Time) (core.Redemption, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, exists := l.records[nonce]
	if !exists {
		return core.Redemption{}, core.ErrGrantNotFound
	}
	if now.After(rec.ExpiresAt) {
		return core.Redemption{}, core.ErrGrantExpired
	}
	if rec.State == core.GrantRedeemed {
		return core.Redemption{}, core.ErrGrantUsed
	}

	rec.State = core.GrantRedeemed
	l.records[nonce] = rec

	return core.Redemption{
		ResourceID: rec.ResourceID,
		SubjectID:  rec.SubjectID,
	}, nil
}

// Sweep removes entries whose expiry precedes now, regardless of state.
func (l *MemoryLedger) Sweep(ctx context.Context, now time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for nonce, rec := range l.records {
		if now.After(rec.ExpiresAt) {
			delete(l.records, nonce)
			removed++
		}
	}
	return removed, nil
}

var _ ports.GrantLedger = (*MemoryLedger)(nil)
