package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KARTIKEY-KATYAL/EZ/core"
)

func record(nonce string, expiresAt time.Time) core.GrantRecord {
	return core.GrantRecord{
		Nonce:      nonce,
		ResourceID: "42",
		SubjectID:  "7",
		ExpiresAt:  expiresAt,
	}
}

func TestMemoryLedger_RegisterAndRedeem(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, l.Register(ctx, record("n1", now.Add(time.Hour))))

	red, err := l.TryRedeem(ctx, "n1", now)
	require.NoError(t, err)
	assert.Equal(t, "42", red.ResourceID)
	assert.Equal(t, "7", red.SubjectID)

	_, err = l.TryRedeem(ctx, "n1", now)
	assert.ErrorIs(t, err, core.ErrGrantUsed)
}

func TestMemoryLedger_DuplicateNonce(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, l.Register(ctx, record("n1", now.Add(time.Hour))))
	err := l.Register(ctx, record("n1", now.Add(2*time.Hour)))
	assert.ErrorIs(t, err, core.ErrDuplicateNonce)

	// The original grant must still be redeemable; a collision never
	// overwrites a live entry.
	red, err := l.TryRedeem(ctx, "n1", now)
	require.NoError(t, err)
	assert.Equal(t, "42", red.ResourceID)
}

func TestMemoryLedger_NotFound(t *testing.T) {
	l := NewMemoryLedger()
	_, err := l.TryRedeem(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, core.ErrGrantNotFound)
}

func TestMemoryLedger_ExpiryBeatsConsumptionState(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, l.Register(ctx, record("n1", now.Add(time.Hour))))

	// Past expiry the grant is unredeemable even though it is still issued.
	_, err := l.TryRedeem(ctx, "n1", now.Add(time.Hour+time.Second))
	assert.ErrorIs(t, err, core.ErrGrantExpired)

	// And an already-redeemed grant also reports expiry once expired.
	require.NoError(t, l.Register(ctx, record("n2", now.Add(time.Hour))))
	_, err = l.TryRedeem(ctx, "n2", now)
	require.NoError(t, err)
	_, err = l.TryRedeem(ctx, "n2", now.Add(time.Hour+time.Second))
	assert.ErrorIs(t, err, core.ErrGrantExpired)
}

func TestMemoryLedger_RedeemAtExpiryBoundary(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	now := time.Now()

	// Redemption exactly at expires_at still succeeds; only now > expires_at
	// is expired.
	require.NoError(t, l.Register(ctx, record("n1", now.Add(time.Hour))))
	_, err := l.TryRedeem(ctx, "n1", now.Add(time.Hour))
	assert.NoError(t, err)
}

func TestMemoryLedger_ConcurrentRedeemSingleWinner(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	now := time.Now()

	const n = 64
	require.NoError(t, l.Register(ctx, record("n1", now.Add(time.Hour))))

	var wg sync.WaitGroup
	results := make(chan error, n)
	start := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := l.TryRedeem(ctx, "n1", now)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	successes, used := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, core.ErrGrantUsed):
			used++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, used)
}

func TestMemoryLedger_Sweep(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, l.Register(ctx, record("live", now.Add(time.Hour))))
	require.NoError(t, l.Register(ctx, record("expired-issued", now.Add(-time.Minute))))
	require.NoError(t, l.Register(ctx, record("expired-redeemed", now.Add(time.Minute))))
	_, err := l.TryRedeem(ctx, "expired-redeemed", now)
	require.NoError(t, err)

	removed, err := l.Sweep(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	// The live grant survives the sweep.
	_, err = l.TryRedeem(ctx, "live", now)
	assert.NoError(t, err)
	_, err = l.TryRedeem(ctx, "expired-issued", now)
	assert.ErrorIs(t, err, core.ErrGrantNotFound)
}
