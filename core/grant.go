package core

import "time"

// GrantState tracks the consumption state of an issued grant.
type GrantState string

const (
	// GrantIssued means the grant has been minted but not yet redeemed.
	GrantIssued GrantState = "issued"

	// GrantRedeemed means the grant has been consumed. A redeemed grant
	// never transitions back.
	GrantRedeemed GrantState = "redeemed"
)

// Grant is the logical download capability before encryption. All of its
// fields travel inside the sealed wire token, so the verifier can decode
// them without any lookup other than the consumption-state check.
type Grant struct {
	Nonce      string    `json:"nonce"`
	ResourceID string    `json:"resource"`
	SubjectID  string    `json:"subject"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// GrantRecord is the ledger entry for an issued grant, keyed by nonce.
// ResourceID, SubjectID and ExpiresAt mirror the sealed payload so the
// ledger can validate without re-decrypting.
type GrantRecord struct {
	Nonce      string
	State      GrantState
	ResourceID string
	SubjectID  string
	ExpiresAt  time.Time
}

// Redemption is the result of a successful atomic redeem: the fields the
// ledger had on record for the consumed grant.
type Redemption struct {
	ResourceID string
	SubjectID  string
}

// ResourceHandle identifies a resource released by a successful redemption.
// It is the only thing the verifier hands to the file-storage collaborator;
// the verifier itself never touches file bytes.
type ResourceHandle struct {
	ResourceID string
}
