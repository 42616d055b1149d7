package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Session is a row in the user_sessions table. Only the user id is
// stored; the full identity is reloaded from the users table on each
// request.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionStore keeps sessions in Postgres, in a table distinct from
// users. Get treats an expired row as a miss and deletes it in passing.
type SessionStore struct {
	DB *pgxpool.Pool
}

func NewSessionStore(db *pgxpool.Pool) *SessionStore {
	return &SessionStore{DB: db}
}

func (s *SessionStore) Create(ctx context.Context, sess Session) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO user_sessions (id, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, sess.ID, sess.UserID, sess.ExpiresAt)
	return err
}

func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, user_id, expires_at, created_at
		FROM user_sessions
		WHERE id=$1
	`, id)

	var sess Session
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if sess.ExpiresAt.Before(time.Now()) {
		_ = s.Delete(ctx, id)
		return nil, nil
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM user_sessions WHERE id=$1`, id)
	return err
}

// DeleteByUser revokes every session for a user, e.g. after a password
// reset.
func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM user_sessions WHERE user_id=$1`, userID)
	return err
}

// DeleteExpired clears stale rows; callers may run it periodically.
func (s *SessionStore) DeleteExpired(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM user_sessions WHERE expires_at < NOW()`)
	return err
}

func NewSessionID() string {
	return uuid.NewString()
}
