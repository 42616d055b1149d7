package auth

import (
	"context"
	"errors"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong
	// password, so a login response does not reveal whether the
	// account exists.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	// ErrUnverifiedAccount is a distinct outcome: the password was
	// right but the email was never verified.
	ErrUnverifiedAccount = errors.New("email not verified")
)

// UserFinder is the slice of the credential store the strategy needs.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// Strategy validates an email/password pair against the credential
// store and gates on the verified flag. On success the caller persists
// only the user id into the session.
type Strategy struct {
	Users  UserFinder
	Hasher PasswordHasher
}

func NewStrategy(users UserFinder, hasher PasswordHasher) *Strategy {
	return &Strategy{Users: users, Hasher: hasher}
}

func (s *Strategy) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.Hasher.Compare(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.Verified {
		return nil, ErrUnverifiedAccount
	}
	return user, nil
}
