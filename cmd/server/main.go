package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	appauth "github.com/surpresalabs/surpresa/internal/auth"
	"github.com/surpresalabs/surpresa/internal/clientstore"
	"github.com/surpresalabs/surpresa/internal/config"
	"github.com/surpresalabs/surpresa/internal/creation"
	"github.com/surpresalabs/surpresa/internal/engagement"
	httpserver "github.com/surpresalabs/surpresa/internal/http"
	"github.com/surpresalabs/surpresa/internal/reminder"
	"github.com/surpresalabs/surpresa/internal/store"
	"github.com/surpresalabs/surpresa/internal/web"
)

func main() {
	log.Println("Starting Surpresa server...")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to create db pool: %v", err)
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	stor := store.New(pool)
	sessionManager := appauth.NewSessionManager(cfg)
	authService, err := appauth.NewService(ctx, cfg, stor, sessionManager)
	if err != nil {
		log.Fatalf("failed to initialize auth service: %v", err)
	}

	client := clientstore.New(sessionManager.Codec(), sessionManager.Secure())
	processor := creation.NewProcessor(client, stor.Calendars, stor.Users)
	tracker := engagement.NewTracker(stor.Calendars, stor.Days)
	relay := reminder.NewRelayClient(cfg.Push.RelayURL, cfg.Push.RelayToken)
	if !relay.Enabled() {
		log.Println("push relay not configured; reminders fall back to in-app delivery")
	}
	scheduler := reminder.NewScheduler(relay, stor.Reminders)

	handler := web.NewHandler(cfg, stor, authService, client, processor, tracker, scheduler)
	r := httpserver.NewRouter(cfg, stor, authService, handler)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
