package ports

import "context"

// Authorizer decides whether a subject may be granted access to a resource.
// It is consulted before any grant is minted.
type Authorizer interface {
	Authorize(ctx context.Context, subjectID, resourceID string) (bool, error)
}
