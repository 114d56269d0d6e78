package core

import "time"

// UserType distinguishes the two user classes.
type UserType string

const (
	// UserTypeOps users upload files.
	UserTypeOps UserType = "ops"

	// UserTypeClient users browse and download files. They must verify
	// their email address before they can log in.
	UserTypeClient UserType = "client"
)

// User represents an account in the system.
type User struct {
	ID                string
	Username          string
	Email             string
	PasswordHash      string
	Type              UserType
	Verified          bool
	VerificationToken string
	CreatedAt         time.Time
}
