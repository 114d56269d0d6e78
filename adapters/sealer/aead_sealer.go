package sealer

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/KARTIKEY-KATYAL/EZ/core"
	"github.com/KARTIKEY-KATYAL/EZ/ports"
)

// KeySize is the required length of the seal key in bytes.
const KeySize = chacha20poly1305.KeySize

// tokenVersion is prepended to every wire token and bound as additional
// authenticated data, so tampering with it fails authentication.
const tokenVersion byte = 0x01

// payload is the serialized form of a grant inside the ciphertext.
// Timestamps are Unix nanoseconds so no precision is lost in transit.
type payload struct {
	Nonce      string `json:"n"`
	ResourceID string `json:"r"`
	SubjectID  string `json:"s"`
	IssuedAt   int64  `json:"iat"`
	ExpiresAt  int64  `json:"exp"`
}

// AEADSealer implements the Sealer interface with XChaCha20-Poly1305.
// The key is process-wide, read-only after construction, and must never
// be logged.
type AEADSealer struct {
	key []byte
}

// NewAEADSealer creates a sealer from a 32-byte symmetric key.
func NewAEADSealer(key []byte) (ports.Sealer, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("seal key must be %d bytes, got %d", KeySize, len(key))
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &AEADSealer{key: k}, nil
}

// Seal encrypts the grant into a URL-safe token.
func (s *AEADSealer) Seal(grant *core.Grant) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	plaintext, err := json.Marshal(payload{
		Nonce:      grant.Nonce,
		ResourceID: grant.ResourceID,
		SubjectID:  grant.SubjectID,
		IssuedAt:   grant.IssuedAt.UnixNano(),
		ExpiresAt:  grant.ExpiresAt.UnixNano(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode grant: %w", err)
	}

	cipherNonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(cipherNonce); err != nil {
		return "", fmt.Errorf("failed to generate cipher nonce: %w", err)
	}

	out := make([]byte, 0, 1+len(cipherNonce)+len(plaintext)+chacha20poly1305.Overhead)
	out = append(out, tokenVersion)
	out = append(out, cipherNonce...)
	out = aead.Seal(out, cipherNonce, plaintext, []byte{tokenVersion})

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open decrypts and authenticates a wire token. Every failure collapses to
// core.ErrMalformedToken so callers cannot distinguish tampering from
// truncation or garbage input.
func (s *AEADSealer) Open(token string) (*core.Grant, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, core.ErrMalformedToken
	}
	if len(raw) < 1+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, core.ErrMalformedToken
	}
	version := raw[0]
	if version != tokenVersion {
		return nil, core.ErrMalformedToken
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	cipherNonce := raw[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := raw[1+chacha20poly1305.NonceSizeX:]

	plaintext, err := aead.Open(nil, cipherNonce, ciphertext, []byte{version})
	if err != nil {
		return nil, core.ErrMalformedToken
	}

	var p payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, core.ErrMalformedToken
	}
	if p.Nonce == "" || p.ResourceID == "" || p.SubjectID == "" {
		return nil, core.ErrMalformedToken
	}

	return &core.Grant{
		Nonce:      p.Nonce,
		ResourceID: p.ResourceID,
		SubjectID:  p.SubjectID,
		IssuedAt:   time.Unix(0, p.IssuedAt),
		ExpiresAt:  time.Unix(0, p.ExpiresAt),
	}, nil
}
