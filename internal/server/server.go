package server

import (
	"context"
	"html/template"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"authflow/internal/auth"
	"authflow/internal/config"
)

// UserStore is the credential store contract the handlers consume.
// Production wiring passes *auth.UserRepository; tests substitute
// in-memory fakes.
type UserStore interface {
	Create(ctx context.Context, email, rawPassword string) (*auth.User, error)
	FindByEmail(ctx context.Context, email string) (*auth.User, error)
	FindByID(ctx context.Context, id string) (*auth.User, error)
	VerifyEmail(ctx context.Context, token string) (*auth.User, error)
	SetResetToken(ctx context.Context, email, token string, expiry time.Time) error
	ResetPassword(ctx context.Context, token, newRawPassword string) (*auth.User, error)
}

type SessionStore interface {
	Create(ctx context.Context, sess auth.Session) error
	Get(ctx context.Context, id string) (*auth.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
}

type Limiter interface {
	IsIPBanned(ctx context.Context, ip string) bool
	RegisterLoginFailure(ctx context.Context, ip string) error
	ResetLogin(ctx context.Context, ip string)
	RegisterRegisterAttempt(ctx context.Context, email, ip string) (bool, time.Duration, error)
	CooldownTTL(ctx context.Context, key string) time.Duration
	SetCooldown(ctx context.Context, key string, ttl time.Duration)
}

type Mailer interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

type Server struct {
	Users          UserStore
	Sessions       SessionStore
	Strategy       *auth.Strategy
	Limiter        Limiter
	Mailer         Mailer
	Config         config.Config
	trustedProxies []net.IPNet
	templates      *template.Template
}

func NewServer(cfg config.Config, users UserStore, sessions SessionStore, strategy *auth.Strategy, limiter Limiter, mailer Mailer) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	return &Server{
		Users:          users,
		Sessions:       sessions,
		Strategy:       strategy,
		Limiter:        limiter,
		Mailer:         mailer,
		Config:         cfg,
		trustedProxies: parseProxyCIDRs(cfg.TrustedProxies),
		templates:      tmpl,
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	formatter := &middleware.DefaultLogFormatter{
		Logger:  log.New(log.Writer(), "", log.Flags()),
		NoColor: true,
	}
	r.Use(middleware.RequestLogger(formatter))
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders)

	r.Get("/", s.handleRoot)

	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Get("/register", s.handleRegisterPage)
	r.Post("/register", s.handleRegister)
	r.Get("/logout", s.handleLogout)
	r.Get("/verify-email/{token}", s.handleVerifyEmail)
	r.Get("/forgot-password", s.handleForgotPasswordPage)
	r.Post("/forgot-password", s.handleForgotPassword)
	r.Get("/reset-password/{token}", s.handleResetPasswordPage)
	r.Post("/reset-password/{token}", s.handleResetPassword)

	r.Group(func(pr chi.Router) {
		pr.Use(s.requireSession)
		pr.Get("/dashboard", s.handleDashboard)
	})

	r.NotFound(s.handleNotFound)

	return r
}
