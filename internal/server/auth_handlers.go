package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"authflow/internal/auth"
	"authflow/internal/i18n"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	var errs []string
	if !validateEmail(email) {
		errs = append(errs, "Enter a valid email address")
	}
	if err := validatePassword(password); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		s.render(w, http.StatusUnprocessableEntity, "register", pageData{Title: "Register", Errors: errs})
		return
	}

	ctx := r.Context()
	ip := clientIP(r, s.trustedProxies)
	if locked, _, err := s.Limiter.RegisterRegisterAttempt(ctx, email, ip); err != nil {
		log.Printf("register: rate limit check failed: %v", err)
		s.setFlash(w, errorNotice("Registration failed. Please try again."))
		http.Redirect(w, r, "/register", http.StatusSeeOther)
		return
	} else if locked {
		s.setFlash(w, errorNotice("Too many signup attempts. Try again later."))
		http.Redirect(w, r, "/register", http.StatusSeeOther)
		return
	}

	user, err := s.Users.Create(ctx, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			s.setFlash(w, errorNotice("Email already registered."))
		} else {
			log.Printf("register: create user failed: %v", err)
			s.setFlash(w, errorNotice("Registration failed. Please try again."))
		}
		http.Redirect(w, r, "/register", http.StatusSeeOther)
		return
	}

	// Registration reports success either way; delivery problems stay
	// server-side.
	if err := s.sendVerificationEmail(ctx, user, i18n.LocaleFromRequest(r)); err != nil {
		log.Printf("register: verification email to user %s failed: %v", user.ID, err)
	}

	s.setFlash(w, successNotice("Registration successful! Please check your email to verify your account."))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	if !validateEmail(email) || password == "" {
		s.setFlash(w, errorNotice("Incorrect email or password."))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	ctx := r.Context()
	ip := clientIP(r, s.trustedProxies)
	if s.Limiter.IsIPBanned(ctx, ip) {
		s.setFlash(w, errorNotice("Too many failed sign-in attempts. Try again later."))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	user, err := s.Strategy.Authenticate(ctx, email, password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			_ = s.Limiter.RegisterLoginFailure(ctx, ip)
			s.setFlash(w, errorNotice("Incorrect email or password."))
		case errors.Is(err, auth.ErrUnverifiedAccount):
			s.setFlash(w, errorNotice("Please verify your email first."))
		default:
			log.Printf("login: authenticate failed: %v", err)
			s.setFlash(w, errorNotice("Sign-in failed. Please try again."))
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	s.Limiter.ResetLogin(ctx, ip)

	sess := auth.Session{
		ID:        auth.NewSessionID(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.Config.SessionTTL),
	}
	if err := s.Sessions.Create(ctx, sess); err != nil {
		log.Printf("login: session create failed: %v", err)
		s.setFlash(w, errorNotice("Sign-in failed. Please try again."))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	auth.SetSessionCookie(w, sess.ID, s.Config.SessionSecret, sess.ExpiresAt, s.Config.Production())
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// handleLogout destroys the session if one exists and always clears the
// cookie; logging out twice is not an error.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id, ok := auth.ReadSessionCookie(r, s.Config.SessionSecret); ok {
		if err := s.Sessions.Delete(r.Context(), id); err != nil {
			log.Printf("logout: session delete failed: %v", err)
		}
	}
	auth.ClearSessionCookie(w, s.Config.Production())
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	user, err := s.Users.VerifyEmail(r.Context(), token)
	if err != nil {
		log.Printf("verify-email: %v", err)
		s.setFlash(w, errorNotice("Email verification failed. Please try again."))
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if user == nil {
		s.setFlash(w, errorNotice("Invalid or expired verification token."))
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	s.setFlash(w, successNotice("Email verified successfully! You can now log in."))
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) sendVerificationEmail(ctx context.Context, user *auth.User, locale string) error {
	if user.VerificationToken == nil {
		return fmt.Errorf("user %s has no verification token", user.ID)
	}
	link := fmt.Sprintf("%s/verify-email/%s", strings.TrimRight(s.Config.BaseURL, "/"), *user.VerificationToken)
	content := i18n.VerificationEmail(locale, link)
	return s.Mailer.Send(ctx, user.Email, content.Subject, content.Text, content.HTML)
}
