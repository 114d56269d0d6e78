package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KARTIKEY-KATYAL/EZ/core"
	"github.com/KARTIKEY-KATYAL/EZ/ports"
)

const (
	userPrefix       = "ez:user:"
	userByNamePrefix = "ez:user:name:"
	userByMailPrefix = "ez:user:mail:"
	userByVerify     = "ez:user:verify:"
	filePrefix       = "ez:file:"
	fileIndexKey     = "ez:files"
)

type redisUser struct {
	ID                string        `json:"id"`
	Username          string        `json:"username"`
	Email             string        `json:"email"`
	PasswordHash      string        `json:"password_hash"`
	Type              core.UserType `json:"type"`
	Verified          bool          `json:"verified"`
	VerificationToken string        `json:"verification_token,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}

// RedisUserStore is a Redis implementation of the UserStore interface.
// Users are JSON values under their ID, with secondary keys for username,
// email and pending verification token lookups.
type RedisUserStore struct {
	client *redis.Client
}

// NewRedisUserStore creates a new Redis user store.
func NewRedisUserStore(client *redis.Client) *RedisUserStore {
	return &RedisUserStore{client: client}
}

// Create stores a new user.
func (s *RedisUserStore) Create(ctx context.Context, user *core.User) error {
	taken, err := s.client.Exists(ctx, userByNamePrefix+user.Username, userByMailPrefix+user.Email).Result()
	if err != nil {
		return fmt.Errorf("failed to check user uniqueness: %w", err)
	}
	if taken > 0 {
		return core.ErrUserExists
	}

	data, err := json.Marshal(fromCore(user))
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, userPrefix+user.ID, data, 0)
	pipe.Set(ctx, userByNamePrefix+user.Username, user.ID, 0)
	pipe.Set(ctx, userByMailPrefix+user.Email, user.ID, 0)
	if user.VerificationToken != "" {
		pipe.Set(ctx, userByVerify+user.VerificationToken, user.ID, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	return nil
}

// GetByUsername returns the user for a username.
func (s *RedisUserStore) GetByUsername(ctx context.Context, username string) (*core.User, error) {
	id, err := s.client.Get(ctx, userByNamePrefix+username).Result()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve username: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID returns the user for an ID.
func (s *RedisUserStore) GetByID(ctx context.Context, id string) (*core.User, error) {
	data, err := s.client.Get(ctx, userPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	var u redisUser
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return toCore(&u), nil
}

// GetByVerificationToken returns the user holding a pending verification token.
func (s *RedisUserStore) GetByVerificationToken(ctx context.Context, token string) (*core.User, error) {
	if token == "" {
		return nil, core.ErrVerificationInvalid
	}
	id, err := s.client.Get(ctx, userByVerify+token).Result()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrVerificationInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve verification token: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Update overwrites an existing user. When the verification token has been
// cleared the secondary lookup key is removed with it.
func (s *RedisUserStore) Update(ctx context.Context, user *core.User) error {
	prev, err := s.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(fromCore(user))
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, userPrefix+user.ID, data, 0)
	if prev.VerificationToken != "" && prev.VerificationToken != user.VerificationToken {
		pipe.Del(ctx, userByVerify+prev.VerificationToken)
	}
	if user.VerificationToken != "" {
		pipe.Set(ctx, userByVerify+user.VerificationToken, user.ID, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func fromCore(u *core.User) redisUser {
	return redisUser{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		PasswordHash:      u.PasswordHash,
		Type:              u.Type,
		Verified:          u.Verified,
		VerificationToken: u.VerificationToken,
		CreatedAt:         u.CreatedAt,
	}
}

func toCore(u *redisUser) *core.User {
	return &core.User{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		PasswordHash:      u.PasswordHash,
		Type:              u.Type,
		Verified:          u.Verified,
		VerificationToken: u.VerificationToken,
		CreatedAt:         u.CreatedAt,
	}
}

var _ ports.UserStore = (*RedisUserStore)(nil)

type redisFile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	UploadedBy   string    `json:"uploaded_by"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// RedisFileStore is a Redis implementation of the FileStore interface.
// File metadata is JSON under the file ID; a sorted set ordered by upload
// time backs listing.
type RedisFileStore struct {
	client *redis.Client
}

// NewRedisFileStore creates a new Redis file store.
func NewRedisFileStore(client *redis.Client) *RedisFileStore {
	return &RedisFileStore{client: client}
}

// Create stores metadata for a newly uploaded file.
func (s *RedisFileStore) Create(ctx context.Context, meta *core.FileMeta) error {
	data, err := json.Marshal(redisFile(*meta))
	if err != nil {
		return fmt.Errorf("failed to encode file metadata: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, filePrefix+meta.ID, data, 0)
	pipe.ZAdd(ctx, fileIndexKey, redis.Z{
		Score:  float64(meta.UploadedAt.UnixNano()),
		Member: meta.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store file metadata: %w", err)
	}
	return nil
}

// Get returns the metadata for a file ID.
func (s *RedisFileStore) Get(ctx context.Context, id string) (*core.FileMeta, error) {
	data, err := s.client.Get(ctx, filePrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load file metadata: %w", err)
	}

	var f redisFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode file metadata: %w", err)
	}
	meta := core.FileMeta(f)
	return &meta, nil
}

// List returns all uploaded files, newest first.
func (s *RedisFileStore) List(ctx context.Context) ([]*core.FileMeta, error) {
	ids, err := s.client.ZRevRange(ctx, fileIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	out := make([]*core.FileMeta, 0, len(ids))
	for _, id := range ids {
		meta, err := s.Get(ctx, id)
		if errors.Is(err, core.ErrFileNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, nil
}

var _ ports.FileStore = (*RedisFileStore)(nil)
