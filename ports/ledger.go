package ports

import (
	"context"
	"time"

	"github.com/KARTIKEY-KATYAL/EZ/core"
)

// GrantLedger is the durable source of truth for grant consumption state.
// TryRedeem is the only mutator of that state and must be linearizable with
// respect to itself: concurrent attempts on one nonce yield exactly one
// success.
type GrantLedger interface {
	// Register records a freshly minted grant as issued. It fails with
	// core.ErrDuplicateNonce if an entry for the nonce already exists.
	Register(ctx context.Context, rec core.GrantRecord) error

	// TryRedeem atomically checks and consumes the grant for nonce:
	// core.ErrGrantNotFound if no entry exists, core.ErrGrantExpired if
	// now is past the entry's expiry (in any state), core.ErrGrantUsed if
	// the entry is already redeemed. On success the entry flips to
	// redeemed and the mirrored fields are returned.
	TryRedeem(ctx context.Context, nonce string, now time.Time) (core.Redemption, error)

	// Sweep removes entries whose expiry precedes now, regardless of
	// state, and reports how many were removed. Maintenance only; safe to
	// run at any time.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
