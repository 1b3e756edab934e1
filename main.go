package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"triple-triad-server/ai"
	"triple-triad-server/api"
	"triple-triad-server/auth"
	"triple-triad-server/config"
	"triple-triad-server/game"
	"triple-triad-server/loghandler"
	"triple-triad-server/matchmaking"
	"triple-triad-server/storage"
	"triple-triad-server/ws"
)

func main() {
	envErr := godotenv.Load()
	if envErr != nil {
		envErr = godotenv.Load("server/.env")
	}

	cfg := config.Load()
	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stderr, cfg.SlogLevel())))

	if envErr != nil {
		slog.Info("no .env file found; using environment variables", "tag", "main")
	}
	if err := run(cfg); err != nil {
		slog.Error("server stopped", "tag", "main", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	verifier, err := auth.NewVerifier(cfg.AuthBaseURL)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if verifier.Enabled() {
		slog.Info("auth configured", "tag", "main", "base_url", cfg.AuthBaseURL)
	} else {
		slog.Warn("AUTH_BASE_URL is not set; player ids are trusted as sent", "tag", "main")
	}

	catalog := game.DefaultCatalog()
	dealer, err := game.NewDealer(catalog)
	if err != nil {
		return fmt.Errorf("dealer: %w", err)
	}

	reg := matchmaking.NewRegistry(catalog, dealer, store, cfg)
	reg.SetBots(ai.NewPool(ctx, reg, catalog, cfg.AIProfiles))

	// Bots must be set first so restored AI seats resume play.
	restored, err := reg.Restore(ctx)
	if err != nil {
		slog.Error("restoring matches failed", "tag", "main", "err", err)
	} else if restored > 0 {
		slog.Info("matches restored", "tag", "main", "count", restored)
	}

	hub := ws.NewHub(ctx, reg, verifier)
	go hub.Run()

	mux := http.NewServeMux()
	api.NewHandler(reg, store, verifier).Routes(mux)
	mux.HandleFunc("GET /ws", hub.ServeWS)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WSPort),
		Handler:           api.WithCORS(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Triple Triad server listening", "tag", "main", "addr", srv.Addr, "cards", catalog.Len())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down", "tag", "main")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
