package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"authflow/internal/auth"
	"authflow/internal/i18n"
)

const (
	resetTokenBytes = 20
	resetTokenTTL   = 1 * time.Hour
)

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	if !validateEmail(email) {
		s.setFlash(w, errorNotice("Enter a valid email address."))
		http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
		return
	}

	ctx := r.Context()
	cooldownKey := "forgot_password_cooldown:" + strings.ToLower(email)
	if ttl := s.Limiter.CooldownTTL(ctx, cooldownKey); ttl > 0 {
		s.setFlash(w, errorNotice(fmt.Sprintf("Please wait %d seconds before making another request.", int(ttl.Seconds()))))
		http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
		return
	}

	user, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		log.Printf("forgot-password: lookup failed: %v", err)
		s.setFlash(w, errorNotice("Something went wrong. Please try again."))
		http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
		return
	}
	if user == nil {
		// Reveals account existence; kept deliberately to match the
		// flow's messaging.
		s.setFlash(w, errorNotice("No account with that email address exists."))
		http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
		return
	}

	locale := i18n.LocaleFromRequest(r)

	if !user.Verified {
		if err := s.sendVerificationEmail(ctx, user, locale); err != nil {
			log.Printf("forgot-password: verification email to user %s failed: %v", user.ID, err)
		}
		s.Limiter.SetCooldown(ctx, cooldownKey, auth.EmailCooldown)
		s.setFlash(w, errorNotice("Please verify your email before resetting your password. Check your inbox for a new verification link."))
		http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
		return
	}

	token, err := auth.NewToken(resetTokenBytes)
	if err != nil {
		log.Printf("forgot-password: token generation failed: %v", err)
		s.setFlash(w, errorNotice("Something went wrong. Please try again."))
		http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
		return
	}

	// Overwrites any previously issued token, so only the newest link works.
	if err := s.Users.SetResetToken(ctx, email, token, time.Now().Add(resetTokenTTL)); err != nil {
		log.Printf("forgot-password: store token failed: %v", err)
		s.setFlash(w, errorNotice("Something went wrong. Please try again."))
		http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
		return
	}

	link := fmt.Sprintf("%s/reset-password/%s", strings.TrimRight(s.Config.BaseURL, "/"), token)
	content := i18n.PasswordResetEmail(locale, link, int(resetTokenTTL.Hours()))
	if err := s.Mailer.Send(ctx, user.Email, content.Subject, content.Text, content.HTML); err != nil {
		log.Printf("forgot-password: reset email to user %s failed: %v", user.ID, err)
		s.setFlash(w, errorNotice("Error sending reset email. Please try again."))
		http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
		return
	}

	s.Limiter.SetCooldown(ctx, cooldownKey, auth.EmailCooldown)
	s.setFlash(w, successNotice("An email has been sent with further instructions."))
	http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confirmPassword")

	if err := validatePassword(password); err != nil {
		s.render(w, http.StatusUnprocessableEntity, "reset_password", pageData{
			Title:  "Reset password",
			Errors: []string{err.Error()},
			Token:  token,
		})
		return
	}
	if password != confirm {
		s.setFlash(w, errorNotice("Passwords do not match."))
		http.Redirect(w, r, "/reset-password/"+token, http.StatusSeeOther)
		return
	}

	ctx := r.Context()
	user, err := s.Users.ResetPassword(ctx, token, password)
	if err != nil {
		log.Printf("reset-password: %v", err)
		s.setFlash(w, errorNotice("Something went wrong. Please try again."))
		http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
		return
	}
	if user == nil {
		s.setFlash(w, errorNotice("Password reset token is invalid or has expired."))
		http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
		return
	}

	// The password changed; outstanding sessions no longer belong to it.
	if err := s.Sessions.DeleteByUser(ctx, user.ID); err != nil {
		log.Printf("reset-password: session revocation for user %s failed: %v", user.ID, err)
	}

	s.setFlash(w, successNotice("Password reset successfully! You can now log in with your new password."))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
