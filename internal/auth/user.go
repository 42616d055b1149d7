package auth

import "time"

// User is a row in the users table. PasswordHash only ever holds the
// bcrypt digest; the raw password is hashed at the repository boundary
// and never stored or logged.
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	Verified          bool
	VerificationToken *string
	ResetToken        *string
	ResetTokenExpiry  *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
