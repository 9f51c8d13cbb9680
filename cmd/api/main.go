package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/simply-study/backend/internal/config"
	"github.com/simply-study/backend/internal/handler"
	"github.com/simply-study/backend/internal/logger"
	"github.com/simply-study/backend/internal/service/ai"
	"github.com/simply-study/backend/internal/storage"
	"github.com/simply-study/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zl := logger.New(cfg.Log.FilePath, cfg.Log.Prod)
	defer zl.Sync()

	db, err := storage.Open(cfg.Storage.Path, zl)
	if err != nil {
		zl.Fatal("failed to open storage", zap.String("path", cfg.Storage.Path), zap.Error(err))
	}
	defer db.Close()

	studies, err := db.LoadStudies()
	if err != nil {
		zl.Fatal("failed to load studies", zap.Error(err))
	}
	st := store.New(studies, db, zl)
	zl.Info("study store loaded", zap.Int("studies", st.Count()))

	aiSvc := ai.NewService(cfg.AI, zl)
	if cfg.AI.Enabled() {
		zl.Info("AI service configured", zap.String("model", cfg.AI.Model))
	} else {
		zl.Warn("ARK_MODEL not set, AI features disabled")
	}

	router := handler.NewRouter(st, aiSvc, db, cfg.AI.DefaultAPIKey, zl)

	startServer(ctx, cfg.Server, router, zl)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, zl *zap.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	zl.Info("Simply backend listening", zap.String("addr", serverCfg.Addr))
	if err := runServer(ctx, srv); err != nil {
		zl.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
