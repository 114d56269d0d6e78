package ports

import "github.com/KARTIKEY-KATYAL/EZ/core"

// SessionTokenizer converts between users and signed access tokens for the
// HTTP session layer. Session tokens are bearer credentials; they are
// signed, not encrypted, and are unrelated to the sealed download grants.
type SessionTokenizer interface {
	// AccessToken signs a short-lived access token for the user.
	AccessToken(user *core.User) (string, error)

	// Subject verifies an access token and returns the user ID it was
	// issued to.
	Subject(token string) (string, error)
}
