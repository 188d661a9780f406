package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/dice-poker-backend/internal/archive"
	"github.com/DoyleJ11/dice-poker-backend/internal/config"
	"github.com/DoyleJ11/dice-poker-backend/internal/httpapi"
	"github.com/DoyleJ11/dice-poker-backend/internal/hub"
	"github.com/DoyleJ11/dice-poker-backend/internal/lobby"
	"github.com/DoyleJ11/dice-poker-backend/internal/logging"
	"github.com/DoyleJ11/dice-poker-backend/internal/ws"
)

const resultQueueSize = 256

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	var results lobby.ResultRecorder = archive.Nop{}
	if cfg.DatabaseURL != "" {
		store, err := archive.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()

		rec := archive.NewRecorder(store, resultQueueSize, nil, log.Named("archive"))
		g.Go(func() error { return rec.Run(gctx) })
		results = rec
	} else {
		log.Info("DATABASE_URL not set, round history disabled")
	}

	// Rooms outlive individual requests; they stop with the process.
	h := hub.NewHub(gctx, hub.Options{
		Lobby: lobby.Options{
			TurnTimeout: cfg.TurnTimeout,
			Results:     results,
		},
		Logger: log.Named("hub"),
	})

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(h, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		WS: ws.Config{
			DefaultMaxRerolls: cfg.DefaultMaxRerolls,
			MaxRerollsLimit:   cfg.MaxRerollsLimit,
			OriginPatterns:    cfg.AllowedOrigins,
		},
		Logger: log,
	})
	srv := &http.Server{Addr: cfg.Addr(), Handler: handler}

	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.Duration("turn_timeout", cfg.TurnTimeout))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		h.Shutdown()

		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}
