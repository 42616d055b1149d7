package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

const sessionCookieName = "session_id"

// The cookie value is "<id>.<hmac>" so a tampered or forged session id
// is rejected before the store is ever consulted.

func SetSessionCookie(w http.ResponseWriter, id, secret string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id + "." + signSessionID(id, secret),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}

func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadSessionCookie returns the session id when the cookie is present
// and its signature checks out.
func ReadSessionCookie(r *http.Request, secret string) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	idx := strings.LastIndexByte(cookie.Value, '.')
	if idx <= 0 || idx == len(cookie.Value)-1 {
		return "", false
	}

	id, sig := cookie.Value[:idx], cookie.Value[idx+1:]
	if !hmac.Equal([]byte(sig), []byte(signSessionID(id, secret))) {
		return "", false
	}
	return id, true
}

func signSessionID(id, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}
