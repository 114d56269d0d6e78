package ports

import "context"

// EventPublisher publishes grant lifecycle events to notify other
// instances. Publishing is best-effort; failures never abort the
// operation that triggered the event.
type EventPublisher interface {
	PublishGrantIssued(ctx context.Context, subjectID, resourceID, nonce string) error
	PublishGrantRedeemed(ctx context.Context, subjectID, resourceID, nonce string) error
}
