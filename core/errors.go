package core

import "errors"

// Grant subsystem errors. All are terminal for the token they concern;
// none is retryable.
var (
	// ErrDuplicateNonce is returned when registering a grant whose nonce
	// already has a ledger entry. A collision must never overwrite a
	// live grant.
	ErrDuplicateNonce = errors.New("grant nonce already registered")

	// ErrMalformedToken is returned when a wire token fails decoding,
	// decryption or authentication.
	ErrMalformedToken = errors.New("malformed download token")

	// ErrGrantNotFound is returned when no ledger entry exists for a nonce.
	ErrGrantNotFound = errors.New("grant not found")

	// ErrTokenExpired is returned when the expiry embedded in the sealed
	// payload has passed.
	ErrTokenExpired = errors.New("download token has expired")

	// ErrGrantExpired is returned when the ledger entry's expiry has
	// passed, regardless of consumption state.
	ErrGrantExpired = errors.New("grant has expired")

	// ErrGrantUsed is returned when a grant has already been redeemed.
	ErrGrantUsed = errors.New("grant already redeemed")

	// ErrSubjectMismatch is returned when the authenticated caller is not
	// the subject the grant was issued to.
	ErrSubjectMismatch = errors.New("grant issued to a different subject")

	// ErrNotAuthorized is returned when the authorization collaborator
	// refuses the (subject, resource) pair at issue time.
	ErrNotAuthorized = errors.New("subject not authorized for resource")
)

// Account and file errors.
var (
	ErrInvalidCredentials  = errors.New("incorrect username or password")
	ErrUserExists          = errors.New("username or email already registered")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserNotVerified     = errors.New("email address not verified")
	ErrWrongUserType       = errors.New("operation not permitted for this user type")
	ErrVerificationInvalid = errors.New("invalid or expired verification token")
	ErrFileNotFound        = errors.New("file not found")
	ErrFileTooLarge        = errors.New("file exceeds the maximum allowed size")
	ErrFileTypeNotAllowed  = errors.New("file type not allowed")
)
