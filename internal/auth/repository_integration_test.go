//go:build integration

package auth

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"authflow/internal/database"
)

// These tests exercise the repository's actual statements, in
// particular the conditional single-UPDATE token consumption that the
// in-memory fakes only mirror. They run against a disposable database:
//
//	TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/auth

func integrationRepo(t *testing.T) *UserRepository {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.Connect(url)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(t, database.ApplyMigrations(ctx, db, "../../migrations"))

	return NewUserRepository(db, NewBcryptHasher(bcrypt.MinCost))
}

func createTestAccount(t *testing.T, repo *UserRepository) *User {
	t.Helper()

	email := uuid.NewString() + "@example.com"
	user, err := repo.Create(context.Background(), email, "secret1")
	require.NoError(t, err)
	require.NotNil(t, user.VerificationToken)

	t.Cleanup(func() {
		_, _ = repo.DB.Exec(context.Background(), `DELETE FROM users WHERE id=$1`, user.ID)
	})
	return user
}

func TestCreateMapsUniqueViolation(t *testing.T) {
	repo := integrationRepo(t)
	ctx := context.Background()

	user := createTestAccount(t, repo)

	dup, err := repo.Create(ctx, user.Email, "other-password")
	assert.Nil(t, dup)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestVerifyEmailConsumesTokenAtomically(t *testing.T) {
	repo := integrationRepo(t)
	ctx := context.Background()

	user := createTestAccount(t, repo)
	token := *user.VerificationToken

	// Concurrent consumers race the same conditional UPDATE; exactly
	// one may observe the token.
	const attempts = 4
	results := make(chan *User, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := repo.VerifyEmail(ctx, token)
			assert.NoError(t, err)
			results <- got
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for got := range results {
		if got != nil {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	after, err := repo.FindByEmail(ctx, user.Email)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.True(t, after.Verified)
	assert.Nil(t, after.VerificationToken)
}

func TestResetPasswordConsumesTokenAtomically(t *testing.T) {
	repo := integrationRepo(t)
	ctx := context.Background()

	user := createTestAccount(t, repo)

	token, err := NewToken(20)
	require.NoError(t, err)
	require.NoError(t, repo.SetResetToken(ctx, user.Email, token, time.Now().Add(time.Hour)))

	const attempts = 4
	results := make(chan *User, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := repo.ResetPassword(ctx, token, "brand-new-pass")
			assert.NoError(t, err)
			results <- got
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for got := range results {
		if got != nil {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	after, err := repo.FindByEmail(ctx, user.Email)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Nil(t, after.ResetToken)
	assert.Nil(t, after.ResetTokenExpiry)
	assert.True(t, repo.Hasher.Compare(after.PasswordHash, "brand-new-pass"))
	assert.False(t, repo.Hasher.Compare(after.PasswordHash, "secret1"))
}

func TestResetPasswordRejectsExpiredToken(t *testing.T) {
	repo := integrationRepo(t)
	ctx := context.Background()

	user := createTestAccount(t, repo)

	token, err := NewToken(20)
	require.NoError(t, err)
	require.NoError(t, repo.SetResetToken(ctx, user.Email, token, time.Now().Add(-time.Minute)))

	got, err := repo.ResetPassword(ctx, token, "brand-new-pass")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSetResetTokenInvalidatesPreviousToken(t *testing.T) {
	repo := integrationRepo(t)
	ctx := context.Background()

	user := createTestAccount(t, repo)

	first, err := NewToken(20)
	require.NoError(t, err)
	require.NoError(t, repo.SetResetToken(ctx, user.Email, first, time.Now().Add(time.Hour)))

	second, err := NewToken(20)
	require.NoError(t, err)
	require.NoError(t, repo.SetResetToken(ctx, user.Email, second, time.Now().Add(time.Hour)))

	got, err := repo.ResetPassword(ctx, first, "brand-new-pass")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.ResetPassword(ctx, second, "brand-new-pass")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)
}
