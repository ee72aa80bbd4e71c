// Package main is the entry point for the keychain daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Lisboaa111/Nillion-Keychain/internal/admin"
	"github.com/Lisboaa111/Nillion-Keychain/internal/bridge"
	"github.com/Lisboaa111/Nillion-Keychain/internal/config"
	"github.com/Lisboaa111/Nillion-Keychain/internal/logging"
	"github.com/Lisboaa111/Nillion-Keychain/internal/pending"
	"github.com/Lisboaa111/Nillion-Keychain/internal/popup"
	"github.com/Lisboaa111/Nillion-Keychain/internal/registry"
	"github.com/Lisboaa111/Nillion-Keychain/internal/relayapi"
	"github.com/Lisboaa111/Nillion-Keychain/internal/router"
	"github.com/Lisboaa111/Nillion-Keychain/internal/session"
	"github.com/Lisboaa111/Nillion-Keychain/internal/store"
	"github.com/Lisboaa111/Nillion-Keychain/internal/wallet"
	"github.com/Lisboaa111/Nillion-Keychain/internal/wire"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// logOpener stands in for the browser popup window: it logs the popup URL so
// the operator can resolve the request through the admin surface or the CLI.
type logOpener struct {
	logger *slog.Logger
}

func (o logOpener) OpenPopup(popupURL string) error {
	o.logger.Info("approval required", "popup_url", popupURL)
	return nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.Setup(os.Stdout, cfg.Log.Level)

	logger.Info("starting keychaind",
		"version", version,
		"dev_mode", cfg.Security.DevMode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	s, err := store.NewBoltStore(filepath.Join(cfg.DataDir, "keychain.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	w := wallet.New(s, session.New(), cfg.Security.KDFIterations, logger)
	if err := w.StartupLock(cfg.Security.DevMode, "daemon start"); err != nil {
		return fmt.Errorf("startup lock: %w", err)
	}

	p := pending.NewStore(cfg.Approval.Timeout)

	// The tab manager and the router reference each other: tabs send into
	// the router, and the registry notifies tabs through the manager. The
	// closure breaks the construction cycle.
	var rt *router.Router
	mgr := bridge.NewManager(func(ctx context.Context, sender wire.Sender, msg wire.Message) (wire.Response, bool) {
		return rt.Handle(ctx, sender, msg)
	}, cfg.Security.ExtensionID, cfg.Provider.Timeout, logger)

	reg := registry.New(s, mgr, logger)
	rt = router.New(w, reg, p, logOpener{logger: logger}, s, router.Config{
		ExtensionID:     cfg.Security.ExtensionID,
		ApprovalTimeout: cfg.Approval.Timeout,
	}, logger)

	var relay *relayapi.Client
	if cfg.Relay.URL != "" {
		relay, err = relayapi.New(cfg.Relay.URL, nil)
		if err != nil {
			return fmt.Errorf("build relay client: %w", err)
		}
	}

	executor := popup.New(&popup.RouterBackend{
		Router: rt,
		Sender: wire.Sender{ExtensionID: cfg.Security.ExtensionID},
	}, w, nil, relay, cfg.Nodes, logger)

	adminRouter := admin.NewRouter(&admin.Dependencies{
		Config:   cfg,
		Wallet:   w,
		Registry: reg,
		Pending:  p,
		Executor: executor,
		Store:    s,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:         cfg.Admin.Addr,
		Handler:      adminRouter,
		ReadTimeout:  cfg.Admin.ReadTimeout,
		WriteTimeout: cfg.Admin.WriteTimeout,
		IdleTimeout:  cfg.Admin.IdleTimeout,
	}

	go func() {
		logger.Info("admin server listening", "addr", cfg.Admin.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin server error", "error", err)
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutting down")
	case <-ctx.Done():
		logger.Info("context canceled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if err := w.Lock(); err != nil {
		logger.Error("failed to lock wallet on shutdown", "error", err)
	}

	logger.Info("keychaind stopped")
	return nil
}
