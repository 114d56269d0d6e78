package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KARTIKEY-KATYAL/EZ/core"
	"github.com/KARTIKEY-KATYAL/EZ/ports"
)

// keyTTLSlack is added on top of the grant expiry when setting the Redis
// key TTL, so a record outlives its grant long enough for the ledger-side
// expiry check to answer instead of NotFound near the boundary.
const keyTTLSlack = time.Hour

// registerScript creates the record only if the nonce key does not exist.
// Returns 0 when the key was already present.
var registerScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'state', ARGV[1], 'resource', ARGV[2], 'subject', ARGV[3], 'expires_at', ARGV[4])
redis.call('PEXPIREAT', KEYS[1], ARGV[5])
return 1
`)

// redeemScript is the atomic check-then-flip. It runs as a single script
// on the server, so two racing calls serialize there: only one observes
// state=issued.
var redeemScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if not state then
	return {'not_found'}
end
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_at'))
if tonumber(ARGV[1]) > expires then
	return {'expired'}
end
if state ~= ARGV[2] then
	return {'used'}
end
redis.call('HSET', KEYS[1], 'state', ARGV[3])
return {'ok', redis.call('HGET', KEYS[1], 'resource'), redis.call('HGET', KEYS[1], 'subject')}
`)

// RedisLedger is a Redis implementation of the GrantLedger interface.
type RedisLedger struct {
	client *redis.Client
	prefix string
}

// NewRedisLedger creates a new Redis ledger.
func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{
		client: client,
		prefix: "ez:grant:",
	}
}

func (l *RedisLedger) key(nonce string) string {
	return l.prefix + nonce
}

// Register records a freshly minted grant as issued.
func (l *RedisLedger) Register(ctx context.Context, rec core.GrantRecord) error {
	created, err := registerScript.Run(ctx, l.client,
		[]string{l.key(rec.Nonce)},
		string(core.GrantIssued),
		rec.ResourceID,
		rec.SubjectID,
		rec.ExpiresAt.UnixNano(),
		rec.ExpiresAt.Add(keyTTLSlack).UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to register grant: %w", err)
	}
	if created == 0 {
		return core.ErrDuplicateNonce
	}
	return nil
}

// TryRedeem atomically checks and consumes the grant for nonce.
func (l *RedisLedger) TryRedeem(ctx context.Context, nonce string, now time.Time) (core.Redemption, error) {
	res, err := redeemScript.Run(ctx, l.client,
		[]string{l.key(nonce)},
		now.UnixNano(),
		string(core.GrantIssued),
		string(core.GrantRedeemed),
	).StringSlice()
	if err != nil {
		return core.Redemption{}, fmt.Errorf("failed to redeem grant: %w", err)
	}
	if len(res) == 0 {
		return core.Redemption{}, fmt.Errorf("unexpected empty reply from redeem script")
	}

	switch res[0] {
	case "ok":
		if len(res) != 3 {
			return core.Redemption{}, fmt.Errorf("unexpected reply from redeem script: %v", res)
		}
		return core.Redemption{ResourceID: res[1], SubjectID: res[2]}, nil
	case "not_found":
		return core.Redemption{}, core.ErrGrantNotFound
	case "expired":
		return core.Redemption{}, core.ErrGrantExpired
	case "used":
		return core.Redemption{}, core.ErrGrantUsed
	default:
		return core.Redemption{}, fmt.Errorf("unexpected reply from redeem script: %q", res[0])
	}
}

// Sweep removes expired entries. Redis already expires keys on its own via
// the per-key TTL; this pass only reclaims entries earlier than their TTL
// would, scanning the prefix and checking the mirrored expiry.
func (l *RedisLedger) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	iter := l.client.Scan(ctx, 0, l.prefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := l.client.HGet(ctx, key, "expires_at").Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("failed to read grant expiry: %w", err)
		}
		expires, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if now.UnixNano() > expires {
			if err := l.client.Del(ctx, key).Err(); err != nil {
				return removed, fmt.Errorf("failed to delete expired grant: %w", err)
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan grants: %w", err)
	}
	return removed, nil
}

var _ ports.GrantLedger = (*RedisLedger)(nil)
