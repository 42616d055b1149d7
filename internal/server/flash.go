package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const (
	flashCookieName = "flash"
	flashMaxAge     = 300

	noticeSuccess = "success"
	noticeError   = "error"
)

// Notice is a one-time user-facing outcome. Controllers set it on a
// redirect; the next rendered page pops it and shows it exactly once.
// It is an explicit value threaded into the render data, not ambient
// request state.
type Notice struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func successNotice(message string) Notice {
	return Notice{Kind: noticeSuccess, Message: message}
}

func errorNotice(message string) Notice {
	return Notice{Kind: noticeError, Message: message}
}

func (s *Server) setFlash(w http.ResponseWriter, n Notice) {
	raw, err := json.Marshal(n)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		MaxAge:   flashMaxAge,
		HttpOnly: true,
		Secure:   s.Config.Production(),
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the flash cookie. A missing or garbled
// cookie is simply no notice.
func (s *Server) popFlash(w http.ResponseWriter, r *http.Request) *Notice {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Config.Production(),
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var n Notice
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil
	}
	return &n
}
