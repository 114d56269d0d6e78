package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/KARTIKEY-KATYAL/EZ/core"
	"github.com/KARTIKEY-KATYAL/EZ/ports"
)

const badgerPrefix = "grant:"

// redeemRetries bounds the conflict-retry loop in TryRedeem. Conflicts
// resolve after one retry in practice because the winning transaction has
// already flipped the state.
const redeemRetries = 8

type badgerRecord struct {
	State      core.GrantState `json:"state"`
	ResourceID string          `json:"resource"`
	SubjectID  string          `json:"subject"`
	ExpiresAt  int64           `json:"expires_at"`
}

// BadgerLedger is a disk-backed implementation of the GrantLedger interface
// on badger. Badger's serializable transactions provide the atomicity of
// TryRedeem: of two conflicting commits one aborts, retries, and then
// observes the redeemed state.
type BadgerLedger struct {
	db *badger.DB
}

// NewBadgerLedger creates a ledger over an open badger database.
func NewBadgerLedger(db *badger.DB) *BadgerLedger {
	return &BadgerLedger{db: db}
}

func badgerKey(nonce string) []byte {
	return []byte(badgerPrefix + nonce)
}

// Register records a freshly minted grant as issued.
func (l *BadgerLedger) Register(ctx context.Context, rec core.GrantRecord) error {
	key := badgerKey(rec.Nonce)
	err := l.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return core.ErrDuplicateNonce
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		data, err := json.Marshal(badgerRecord{
			State:      core.GrantIssued,
			ResourceID: rec.ResourceID,
			SubjectID:  rec.SubjectID,
			ExpiresAt:  rec.ExpiresAt.UnixNano(),
		})
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicateNonce) {
			return core.ErrDuplicateNonce
		}
		return fmt.Errorf("failed to register grant: %w", err)
	}
	return nil
}

// TryRedeem atomically checks and consumes the grant for nonce. Badger
// reports write conflicts at commit time; losing transactions are retried
// and then fail the state check with core.ErrGrantUsed.
func (l *BadgerLedger) TryRedeem(ctx context.Context, nonce string, now time.Time) (core.Redemption, error) {
	key := badgerKey(nonce)

	var lastErr error
	for attempt := 0; attempt < redeemRetries; attempt++ {
		var redeemed core.Redemption
		err := l.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return core.ErrGrantNotFound
			}
			if err != nil {
				return err
			}

			var rec badgerRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}

			if now.UnixNano() > rec.ExpiresAt {
				return core.ErrGrantExpired
			}
			if rec.State == core.GrantRedeemed {
				return core.ErrGrantUsed
			}

			rec.State = core.GrantRedeemed
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}

			redeemed = core.Redemption{
				ResourceID: rec.ResourceID,
				SubjectID:  rec.SubjectID,
			}
			return nil
		})

		if errors.Is(err, badger.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			if errors.Is(err, core.ErrGrantNotFound) ||
				errors.Is(err, core.ErrGrantExpired) ||
				errors.Is(err, core.ErrGrantUsed) {
				return core.Redemption{}, err
			}
			return core.Redemption{}, fmt.Errorf("failed to redeem grant: %w", err)
		}
		return redeemed, nil
	}
	return core.Redemption{}, fmt.Errorf("failed to redeem grant after %d attempts: %w", redeemRetries, lastErr)
}

// Sweep removes entries whose expiry precedes now, regardless of state.
func (l *BadgerLedger) Sweep(ctx context.Context, now time.Time) (int, error) {
	var expired [][]byte

	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rec badgerRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				continue
			}
			if now.UnixNano() > rec.ExpiresAt {
				expired = append(expired, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan grants: %w", err)
	}

	removed := 0
	for _, key := range expired {
		err := l.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			return removed, fmt.Errorf("failed to delete expired grant: %w", err)
		}
		removed++
	}
	return removed, nil
}

var _ ports.GrantLedger = (*BadgerLedger)(nil)
