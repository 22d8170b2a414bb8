package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"treinos/api/internal/app"
	"treinos/api/internal/assistant"
	"treinos/api/internal/config"
	"treinos/api/internal/local"
	"treinos/api/internal/pin"
	"treinos/api/internal/remote"
	"treinos/api/internal/syncer"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	localStore, err := local.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer localStore.Close()

	// The document service is optional: without it the app runs
	// local-only and the reconciler reports itself degraded.
	var documents *remote.DocumentStore
	db, err := remote.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Printf("WARNING: database connection failed, running local-only: %v", err)
	} else {
		defer db.Close()
		if err := remote.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		documents = remote.NewDocumentStore(db)
		if _, err := documents.EnsureFicha(ctx, cfg.UserID, syncer.DefaultFichaID, "Ficha principal"); err != nil {
			log.Printf("WARNING: could not ensure default ficha: %v", err)
		}
	}

	session := syncer.NewSession(localStore, documents, cfg.UserID, syncer.Options{
		RetryInterval: cfg.RetryInterval,
		WatchInterval: cfg.WatchInterval,
	})
	if err := session.Start(ctx); err != nil {
		log.Printf("WARNING: sync start degraded: %v", err)
	}
	defer session.Close()

	gate := pin.NewGate(localStore)
	if err := gate.Init(ctx, cfg.DefaultPIN); err != nil {
		log.Fatalf("pin init failed: %v", err)
	}

	proxyClient := assistant.NewClient(cfg.ProxyURL, cfg.AgentID, cfg.ProxyTimeout)
	transcript := assistant.NewTranscript(localStore)
	coach := assistant.NewCoach(proxyClient, transcript, session)

	service := app.NewService(session, localStore, documents, coach, gate, cfg.UserID)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Treinos API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
