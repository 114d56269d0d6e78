package ports

import (
	"context"

	"github.com/KARTIKEY-KATYAL/EZ/core"
)

// UserStore persists user accounts.
type UserStore interface {
	// Create stores a new user. It fails with core.ErrUserExists when the
	// username or email is already taken.
	Create(ctx context.Context, user *core.User) error

	// GetByUsername returns the user for a username, or core.ErrUserNotFound.
	GetByUsername(ctx context.Context, username string) (*core.User, error)

	// GetByID returns the user for an ID, or core.ErrUserNotFound.
	GetByID(ctx context.Context, id string) (*core.User, error)

	// GetByVerificationToken returns the user holding a pending
	// verification token, or core.ErrVerificationInvalid.
	GetByVerificationToken(ctx context.Context, token string) (*core.User, error)

	// Update overwrites an existing user, or fails with core.ErrUserNotFound.
	Update(ctx context.Context, user *core.User) error
}

// FileStore persists file metadata.
type FileStore interface {
	// Create stores metadata for a newly uploaded file.
	Create(ctx context.Context, meta *core.FileMeta) error

	// Get returns the metadata for a file ID, or core.ErrFileNotFound.
	Get(ctx context.Context, id string) (*core.FileMeta, error)

	// List returns all uploaded files.
	List(ctx context.Context) ([]*core.FileMeta, error)
}
