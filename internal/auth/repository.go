package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateEmail is returned by Create when the email is already
// registered. Uniqueness is enforced by the database constraint, not a
// read-then-write check, so concurrent registrations cannot both win.
var ErrDuplicateEmail = errors.New("email already registered")

const verificationTokenBytes = 20

const userColumns = `id, email, password, verified, verification_token, reset_token, reset_token_expiry, created_at, updated_at`

// UserRepository is the credential store. Lookup misses are reported as
// (nil, nil); errors are reserved for connectivity and constraint
// failures. Token-consuming operations are single conditional updates so
// two concurrent requests with the same token cannot both succeed.
type UserRepository struct {
	DB     *pgxpool.Pool
	Hasher PasswordHasher
}

func NewUserRepository(db *pgxpool.Pool, hasher PasswordHasher) *UserRepository {
	return &UserRepository{DB: db, Hasher: hasher}
}

func (r *UserRepository) Create(ctx context.Context, email, rawPassword string) (*User, error) {
	hashed, err := r.Hasher.Hash(rawPassword)
	if err != nil {
		return nil, err
	}

	token, err := NewToken(verificationTokenBytes)
	if err != nil {
		return nil, err
	}

	row := r.DB.QueryRow(ctx, `
		INSERT INTO users (id, email, password, verification_token)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns+`
	`, uuid.NewString(), email, hashed, token)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email=$1
	`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

// FindByID loads the minimal projection used to rehydrate a session
// identity. A miss means the session points at a deleted user.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT id, email
		FROM users
		WHERE id=$1
	`, id)

	var user User
	if err := row.Scan(&user.ID, &user.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// VerifyEmail consumes a verification token. A token that never existed
// and one that was already consumed look identical: both miss.
func (r *UserRepository) VerifyEmail(ctx context.Context, token string) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE users
		SET verified=TRUE, verification_token=NULL, updated_at=NOW()
		WHERE verification_token=$1
		RETURNING `+userColumns+`
	`, token)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

// SetResetToken overwrites any outstanding reset token for the email, so
// only the most recently issued token is usable.
func (r *UserRepository) SetResetToken(ctx context.Context, email, token string, expiry time.Time) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users
		SET reset_token=$1, reset_token_expiry=$2, updated_at=NOW()
		WHERE email=$3
	`, token, expiry, email)
	return err
}

// ResetPassword replaces the password hash and clears both reset fields
// in one conditional update. It misses when the token does not match or
// the expiry has passed.
func (r *UserRepository) ResetPassword(ctx context.Context, token, newRawPassword string) (*User, error) {
	hashed, err := r.Hasher.Hash(newRawPassword)
	if err != nil {
		return nil, err
	}

	row := r.DB.QueryRow(ctx, `
		UPDATE users
		SET password=$1, reset_token=NULL, reset_token_expiry=NULL, updated_at=NOW()
		WHERE reset_token=$2 AND reset_token_expiry > NOW()
		RETURNING `+userColumns+`
	`, hashed, token)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		user              User
		verificationToken sql.NullString
		resetToken        sql.NullString
		resetTokenExpiry  sql.NullTime
	)

	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Verified,
		&verificationToken,
		&resetToken,
		&resetTokenExpiry,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}

	user.VerificationToken = nullStringPtr(verificationToken)
	user.ResetToken = nullStringPtr(resetToken)
	user.ResetTokenExpiry = nullTimePtr(resetTokenExpiry)
	return &user, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}
