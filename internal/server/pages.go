package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleRoot redirects based on session state: authenticated users land
// on the dashboard, everyone else on the login page.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.loadIdentity(w, r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login", pageData{Title: "Sign in", Notice: s.popFlash(w, r)})
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "register", pageData{Title: "Register", Notice: s.popFlash(w, r)})
}

func (s *Server) handleForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "forgot_password", pageData{Title: "Forgot password", Notice: s.popFlash(w, r)})
}

func (s *Server) handleResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "reset_password", pageData{
		Title:  "Reset password",
		Notice: s.popFlash(w, r),
		Token:  chi.URLParam(r, "token"),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	if identity == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	s.render(w, http.StatusOK, "dashboard", pageData{
		Title:  "Dashboard",
		Notice: s.popFlash(w, r),
		Email:  identity.Email,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusNotFound, "not_found", pageData{
		Title: "Page Not Found",
		Path:  r.URL.Path,
	})
}
