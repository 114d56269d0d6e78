package ports

import "github.com/KARTIKEY-KATYAL/EZ/core"

// Sealer converts grants to and from their encrypted wire form. The wire
// form is confidential and authenticated: nobody without the key can read
// the fields, and any bit-level modification makes Open fail.
type Sealer interface {
	// Seal encrypts the grant into a URL-safe token.
	Seal(grant *core.Grant) (string, error)

	// Open decrypts and authenticates a wire token. It returns
	// core.ErrMalformedToken for anything that does not decode and
	// authenticate cleanly.
	Open(token string) (*core.Grant, error)
}
