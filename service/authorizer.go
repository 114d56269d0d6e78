package service

import (
	"context"
	"errors"

	"github.com/KARTIKEY-KATYAL/EZ/core"
	"github.com/KARTIKEY-KATYAL/EZ/ports"
)

// FileAuthorizer implements the Authorizer interface against the user and
// file stores: any verified client may be granted any existing file.
type FileAuthorizer struct {
	users ports.UserStore
	files ports.FileStore
}

// NewFileAuthorizer creates a new file authorizer.
func NewFileAuthorizer(users ports.UserStore, files ports.FileStore) *FileAuthorizer {
	return &FileAuthorizer{users: users, files: files}
}

// Authorize reports whether subjectID may download resourceID.
func (a *FileAuthorizer) Authorize(ctx context.Context, subjectID, resourceID string) (bool, error) {
	user, err := a.users.GetByID(ctx, subjectID)
	if errors.Is(err, core.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if user.Type != core.UserTypeClient || !user.Verified {
		return false, nil
	}

	if _, err := a.files.Get(ctx, resourceID); err != nil {
		if errors.Is(err, core.ErrFileNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var _ ports.Authorizer = (*FileAuthorizer)(nil)
