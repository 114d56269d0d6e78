package ports

import "context"

// Mailer delivers transactional email.
type Mailer interface {
	// SendVerification sends the address-verification message for a new
	// client account. verifyURL is the absolute link the recipient follows.
	SendVerification(ctx context.Context, to, username, verifyURL string) error
}
