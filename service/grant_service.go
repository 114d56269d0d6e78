package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/KARTIKEY-KATYAL/EZ/core"
	"github.com/KARTIKEY-KATYAL/EZ/ports"
)

// DefaultGrantTTL is the fixed lifetime of a download grant. One TTL for
// every grant; there is no per-request override.
const DefaultGrantTTL = time.Hour

// nonceBytes is the entropy of a grant nonce. 16 bytes gives 128 bits,
// which makes guessing or collision infeasible without central sequencing.
const nonceBytes = 16

// GrantService issues and redeems encrypted download grants. Issue and
// Redeem are stateless apart from the ledger; any number of them may run
// in parallel.
type GrantService struct {
	sealer ports.Sealer
	ledger ports.GrantLedger
	authz  ports.Authorizer
	clock  ports.Clock
	events ports.EventPublisher
	log    *zap.Logger

	grantTTL time.Duration
}

// NewGrantService creates a new grant service.
func NewGrantService(
	sealer ports.Sealer,
	ledger ports.GrantLedger,
	authz ports.Authorizer,
	clock ports.Clock,
	events ports.EventPublisher,
	log *zap.Logger,
) *GrantService {
	return &GrantService{
		sealer:   sealer,
		ledger:   ledger,
		authz:    authz,
		clock:    clock,
		events:   events,
		log:      log,
		grantTTL: DefaultGrantTTL,
	}
}

// WithGrantTTL overrides the grant lifetime. Intended for configuration at
// startup, not per-request use.
func (s *GrantService) WithGrantTTL(ttl time.Duration) *GrantService {
	s.grantTTL = ttl
	return s
}

// Issue mints an encrypted download grant binding subjectID to resourceID.
// The ledger entry is registered before the ciphertext exists, so no token
// can be in the wild without a corresponding record.
func (s *GrantService) Issue(ctx context.Context, subjectID, resourceID string) (string, error) {
	authorized, err := s.authz.Authorize(ctx, subjectID, resourceID)
	if err != nil {
		return "", fmt.Errorf("authorization check failed: %w", err)
	}
	if !authorized {
		return "", core.ErrNotAuthorized
	}

	nonce, err := generateNonce()
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := s.clock.Now()
	grant := &core.Grant{
		Nonce:      nonce,
		ResourceID: resourceID,
		SubjectID:  subjectID,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.grantTTL),
	}

	err = s.ledger.Register(ctx, core.GrantRecord{
		Nonce:      grant.Nonce,
		ResourceID: grant.ResourceID,
		SubjectID:  grant.SubjectID,
		ExpiresAt:  grant.ExpiresAt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to register grant: %w", err)
	}

	token, err := s.sealer.Seal(grant)
	if err != nil {
		return "", fmt.Errorf("failed to seal grant: %w", err)
	}

	if err := s.events.PublishGrantIssued(ctx, subjectID, resourceID, nonce); err != nil {
		s.log.Warn("failed to publish grant-issued event", zap.Error(err))
	}

	s.log.Info("issued download grant",
		zap.String("subject", subjectID),
		zap.String("resource", resourceID),
		zap.Time("expires_at", grant.ExpiresAt),
	)
	return token, nil
}

// Redeem validates a presented wire token for the authenticated subject and
// atomically consumes it. On success it returns the handle the caller
// passes to file storage; every failure is terminal for that token.
//
// Check order is deliberate: decode/authenticate first so garbage input
// never touches the ledger, then the embedded expiry, then the subject
// binding, and only then the atomic ledger redeem.
func (s *GrantService) Redeem(ctx context.Context, token, subjectID string) (core.ResourceHandle, error) {
	grant, err := s.sealer.Open(token)
	if err != nil {
		return core.ResourceHandle{}, err
	}

	now := s.clock.Now()
	if now.After(grant.ExpiresAt) {
		return core.ResourceHandle{}, core.ErrTokenExpired
	}

	if subjectID != grant.SubjectID {
		return core.ResourceHandle{}, core.ErrSubjectMismatch
	}

	red, err := s.ledger.TryRedeem(ctx, grant.Nonce, now)
	if err != nil {
		return core.ResourceHandle{}, err
	}

	// The ledger mirrors the sealed fields; disagreement means a corrupt
	// record and the grant must not be released.
	if red.ResourceID != grant.ResourceID || red.SubjectID != grant.SubjectID {
		s.log.Error("ledger record disagrees with sealed grant",
			zap.String("nonce", grant.Nonce),
		)
		return core.ResourceHandle{}, core.ErrMalformedToken
	}

	if err := s.events.PublishGrantRedeemed(ctx, grant.SubjectID, grant.ResourceID, grant.Nonce); err != nil {
		s.log.Warn("failed to publish grant-redeemed event", zap.Error(err))
	}

	s.log.Info("redeemed download grant",
		zap.String("subject", grant.SubjectID),
		zap.String("resource", grant.ResourceID),
	)
	return core.ResourceHandle{ResourceID: grant.ResourceID}, nil
}

// Sweep garbage-collects expired ledger entries.
func (s *GrantService) Sweep(ctx context.Context) (int, error) {
	removed, err := s.ledger.Sweep(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep ledger: %w", err)
	}
	if removed > 0 {
		s.log.Info("swept expired grants", zap.Int("removed", removed))
	}
	return removed, nil
}

func generateNonce() (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
