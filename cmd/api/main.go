package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"idgate.org/internal/auth"
	"idgate.org/internal/config"
	"idgate.org/internal/httpapi"
	"idgate.org/internal/obs"
	"idgate.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()

	cfg, err := config.Load(os.Getenv("IDGATE_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := pg.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	codec, err := auth.NewCodec(cfg.Auth.Secret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithAccessTTL(cfg.Auth.AccessTokenTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTokenTTL),
	)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	authSvc, err := auth.NewService(store, codec,
		auth.WithPasswordMinLength(cfg.Auth.PasswordMinLength),
		auth.WithResetTTL(cfg.Auth.ResetTokenTTL),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	rbacSvc, err := auth.NewRBACService(store,
		auth.WithMinPasswordLength(cfg.Auth.PasswordMinLength),
	)
	if err != nil {
		log.Fatalf("rbac service: %v", err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	if err := rbacSvc.EnsureBuiltins(startCtx); err != nil {
		log.Fatalf("ensure builtin permissions: %v", err)
	}
	if err := bootstrapSuperuser(startCtx, store, rbacSvc, cfg.Bootstrap); err != nil {
		log.Fatalf("bootstrap superuser: %v", err)
	}
	cancelStart()

	api := httpapi.New(authSvc, rbacSvc, httpapi.ReadyProbe{DB: store.DB()}, httpapi.Options{
		Version:       version,
		CORSOrigins:   cfg.HTTP.CORSOrigins,
		RateBurst:     cfg.HTTP.RateBurst,
		RatePerSecond: cfg.HTTP.RatePerSecond,
		MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting idgate-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

// bootstrapSuperuser creates the initial superuser account if the
// configured email is not registered yet. Without it a fresh deployment
// has no way to log in.
func bootstrapSuperuser(ctx context.Context, store *pg.Store, rbac *auth.RBACService, cfg config.BootstrapConfig) error {
	if cfg.SuperuserEmail == "" || cfg.SuperuserPassword == "" {
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(cfg.SuperuserEmail))
	_, err := store.Users().FindByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, auth.ErrNotFound) {
		return err
	}
	_, err = rbac.CreateUser(ctx, auth.UserCreate{
		Email:     email,
		FirstName: "Admin",
		LastName:  "User",
		Password:  cfg.SuperuserPassword,
		Active:    true,
		Superuser: true,
	})
	return err
}
