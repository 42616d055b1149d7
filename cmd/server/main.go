package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"authflow/internal/auth"
	"authflow/internal/config"
	"authflow/internal/database"
	"authflow/internal/email"
	"authflow/internal/logging"
	redisx "authflow/internal/redis"
	"authflow/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logOutput := io.Writer(os.Stdout)
	if cfg.LogFile != "" {
		fileWriter, err := logging.NewRotatingFileWriter(cfg.LogFile, cfg.LogMaxBytes, cfg.LogMaxBackups)
		if err != nil {
			log.Fatalf("log setup error: %v", err)
		}
		defer fileWriter.Close()
		logOutput = io.MultiWriter(os.Stdout, fileWriter)
	}
	log.SetOutput(logOutput)
	log.SetFlags(log.LstdFlags | log.LUTC | log.Lshortfile)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer db.Close()

	redisClient, err := redisx.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis error: %v", err)
	}
	defer redisClient.Close()

	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	users := auth.NewUserRepository(db, hasher)
	sessions := auth.NewSessionStore(db)
	strategy := auth.NewStrategy(users, hasher)
	limiter := &auth.RateLimiter{Redis: redisClient}
	mailer := email.NewSender(cfg.Email)

	app, err := server.NewServer(cfg, users, sessions, strategy, limiter, mailer)
	if err != nil {
		log.Fatalf("server init error: %v", err)
	}

	// Expired rows are also dropped lazily on lookup; the sweep keeps the
	// table from growing unbounded.
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := sessions.DeleteExpired(ctx); err != nil {
				log.Printf("session sweep failed: %v", err)
			}
			cancel()
		}
	}()

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.Router(),
		ReadTimeout:  1 * time.Minute,
		WriteTimeout: 1 * time.Minute,
	}

	log.Printf("Listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
