package server

import (
	"context"
	"log"
	"net/http"

	"authflow/internal/auth"
)

type ctxKey string

const identityContextKey ctxKey = "identity"

// Identity is the request-scoped authenticated user. Only the user id
// lives in the session; the rest is rehydrated from the users table on
// every request.
type Identity struct {
	UserID    string
	Email     string
	SessionID string
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := s.loadIdentity(w, r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loadIdentity maps the session cookie to the authenticated user. Any
// miss along the chain (absent or forged cookie, expired session,
// deleted user) short-circuits to unauthenticated.
func (s *Server) loadIdentity(w http.ResponseWriter, r *http.Request) (*Identity, bool) {
	id, ok := auth.ReadSessionCookie(r, s.Config.SessionSecret)
	if !ok {
		return nil, false
	}

	sess, err := s.Sessions.Get(r.Context(), id)
	if err != nil {
		log.Printf("session: lookup failed: %v", err)
		return nil, false
	}
	if sess == nil {
		auth.ClearSessionCookie(w, s.Config.Production())
		return nil, false
	}

	user, err := s.Users.FindByID(r.Context(), sess.UserID)
	if err != nil {
		log.Printf("session: user rehydration failed: %v", err)
		return nil, false
	}
	if user == nil {
		// The session points at a user that no longer exists.
		_ = s.Sessions.Delete(r.Context(), sess.ID)
		auth.ClearSessionCookie(w, s.Config.Production())
		return nil, false
	}

	return &Identity{UserID: user.ID, Email: user.Email, SessionID: sess.ID}, true
}

func identityFromContext(ctx context.Context) *Identity {
	if val, ok := ctx.Value(identityContextKey).(*Identity); ok {
		return val
	}
	return nil
}
