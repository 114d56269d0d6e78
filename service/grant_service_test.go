package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/KARTIKEY-KATYAL/EZ/adapters/events"
	"github.com/KARTIKEY-KATYAL/EZ/adapters/ledger"
	"github.com/KARTIKEY-KATYAL/EZ/adapters/sealer"
	"github.com/KARTIKEY-KATYAL/EZ/core"
	"github.com/KARTIKEY-KATYAL/EZ/ports"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type allowAll struct{}

func (allowAll) Authorize(ctx context.Context, subjectID, resourceID string) (bool, error) {
	return true, nil
}

type denyAll struct{}

func (denyAll) Authorize(ctx context.Context, subjectID, resourceID string) (bool, error) {
	return false, nil
}

type failingSealer struct{}

func (failingSealer) Seal(*core.Grant) (string, error) { return "", errors.New("seal broke") }
func (failingSealer) Open(string) (*core.Grant, error) { return nil, core.ErrMalformedToken }

func newTestGrantService(t *testing.T, authz ports.Authorizer) (*GrantService, *ledger.MemoryLedger, *fakeClock) {
	t.Helper()

	key := make([]byte, sealer.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	s, err := sealer.NewAEADSealer(key)
	require.NoError(t, err)

	l := ledger.NewMemoryLedger()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	svc := NewGrantService(s, l, authz, clock, events.NopPublisher{}, zaptest.NewLogger(t))
	return svc, l, clock
}

func TestGrantService_IssueAndRedeem(t *testing.T) {
	svc, _, _ := newTestGrantService(t, allowAll{})
	ctx := context.Background()

	token, err := svc.Issue(ctx, "7", "42")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	handle, err := svc.Redeem(ctx, token, "7")
	require.NoError(t, err)
	assert.Equal(t, "42", handle.ResourceID)
}

func TestGrantService_ExactlyOneRedeemSucceeds(t *testing.T) {
	svc, _, _ := newTestGrantService(t, allowAll{})
	ctx := context.Background()

	token, err := svc.Issue(ctx, "7", "42")
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, token, "7")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = svc.Redeem(ctx, token, "7")
		assert.ErrorIs(t, err, core.ErrGrantUsed)
	}
}

func TestGrantService_RefusesUnauthorizedIssue(t *testing.T) {
	svc, _, _ := newTestGrantService(t, denyAll{})

	_, err := svc.Issue(context.Background(), "7", "42")
	assert.ErrorIs(t, err, core.ErrNotAuthorized)
}

func TestGrantService_SubjectMismatch(t *testing.T) {
	svc, _, _ := newTestGrantService(t, allowAll{})
	ctx := context.Background()

	token, err := svc.Issue(ctx, "7", "42")
	require.NoError(t, err)

	// A different authenticated caller is refused even though the token
	// is valid, unexpired and unredeemed.
	_, err = svc.Redeem(ctx, token, "9")
	assert.ErrorIs(t, err, core.ErrSubjectMismatch)

	// The refusal must not have consumed the grant.
	_, err = svc.Redeem(ctx, token, "7")
	assert.NoError(t, err)
}

func TestGrantService_ExpiryWindow(t *testing.T) {
	svc, _, clock := newTestGrantService(t, allowAll{})
	ctx := context.Background()

	// Issue at t=0 with TTL 3600s; redeem at t=3599 succeeds, the replay
	// at t=3600 is AlreadyUsed, not expired.
	token, err := svc.Issue(ctx, "7", "42")
	require.NoError(t, err)

	clock.Advance(3599 * time.Second)
	handle, err := svc.Redeem(ctx, token, "7")
	require.NoError(t, err)
	assert.Equal(t, "42", handle.ResourceID)

	clock.Advance(time.Second)
	_, err = svc.Redeem(ctx, token, "7")
	assert.ErrorIs(t, err, core.ErrGrantUsed)
}

func TestGrantService_ExpiredBeforeFirstRedeem(t *testing.T) {
	svc, _, clock := newTestGrantService(t, allowAll{})
	ctx := context.Background()

	token, err := svc.Issue(ctx, "7", "42")
	require.NoError(t, err)

	// At t=3601 the embedded expiry fails first; the attempt never
	// reaches the consumption state.
	clock.Advance(3601 * time.Second)
	_, err = svc.Redeem(ctx, token, "7")
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestGrantService_ExpiryBeatsReplay(t *testing.T) {
	svc, _, clock := newTestGrantService(t, allowAll{})
	ctx := context.Background()

	token, err := svc.Issue(ctx, "7", "42")
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, token, "7")
	require.NoError(t, err)

	// Past expiry a replay reports expiry, regardless of the redeemed
	// state underneath.
	clock.Advance(3601 * time.Second)
	_, err = svc.Redeem(ctx, token, "7")
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestGrantService_ExpiryDefendsAgainstEarlySweep(t *testing.T) {
	svc, l, clock := newTestGrantService(t, allowAll{})
	ctx := context.Background()

	token, err := svc.Issue(ctx, "7", "42")
	require.NoError(t, err)

	// Sweep the record away as if GC ran early, then move past expiry:
	// the embedded-field check still answers expired, not NotFound.
	_, err = l.Sweep(ctx, clock.Now().Add(2*time.Hour))
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = svc.Redeem(ctx, token, "7")
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestGrantService_TamperedTokenNeverTouchesLedger(t *testing.T) {
	svc, _, _ := newTestGrantService(t, allowAll{})
	ctx := context.Background()

	token, err := svc.Issue(ctx, "7", "42")
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	raw[len(raw)/2] ^= 0x01
	tampered := base64.RawURLEncoding.EncodeToString(raw)

	_, err = svc.Redeem(ctx, tampered, "7")
	assert.ErrorIs(t, err, core.ErrMalformedToken)

	// The untampered token is still redeemable: the garbage attempt did
	// not consume anything.
	_, err = svc.Redeem(ctx, token, "7")
	assert.NoError(t, err)
}

func TestGrantService_ConcurrentRedeemSingleWinner(t *testing.T) {
	svc, _, _ := newTestGrantService(t, allowAll{})
	ctx := context.Background()

	const n = 32
	token, err := svc.Issue(ctx, "7", "42")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, n)
	start := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Redeem(ctx, token, "7")
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
		case errors.Is(err, core.ErrGrantUsed):
			used++
		default:
			t.Fatalf("unexpected redeem error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, used)
}

func TestGrantService_NoncesAreUnique(t *testing.T) {
	svc, _, _ := newTestGrantService(t, allowAll{})
	ctx := context.Background()

	// Many grants for one (subject, resource) pair must all be distinct
	// instances: redeeming one leaves the rest redeemable.
	tokens := make([]string, 16)
	for i := range tokens {
		token, err := svc.Issue(ctx, "7", "42")
		require.NoError(t, err)
		tokens[i] = token
	}

	for _, token := range tokens {
		_, err := svc.Redeem(ctx, token, "7")
		require.NoError(t, err)
	}
}

func TestGrantService_RegisterPrecedesCiphertext(t *testing.T) {
	l := ledger.NewMemoryLedger()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	svc := NewGrantService(failingSealer{}, l, allowAll{}, clock, events.NopPublisher{}, zaptest.NewLogger(t))
	ctx := context.Background()

	// Sealing fails after registration, so no token exists but a ledger
	// entry does: the inverse window (token without entry) is impossible.
	_, err := svc.Issue(ctx, "7", "42")
	require.Error(t, err)

	removed, err := l.Sweep(ctx, clock.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestGrantService_Sweep(t *testing.T) {
	svc, _, clock := newTestGrantService(t, allowAll{})
	ctx := context.Background()

	_, err := svc.Issue(ctx, "7", "42")
	require.NoError(t, err)
	_, err = svc.Issue(ctx, "7", "43")
	require.NoError(t, err)

	removed, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	clock.Advance(2 * time.Hour)
	removed, err = svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}
