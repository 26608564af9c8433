// cmd/dialogue-engine/serve.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dialogue-engine/internal/api"
	"dialogue-engine/internal/common/config"
	"dialogue-engine/internal/models"
)

type serveCommander struct {
	root         *rootOptions
	listen       string
	historyLimit int
	debug        bool
	noCORS       bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	cmder := &serveCommander{root: root}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  `Run the HTTP API serving sessions, turns, history search, health, readiness and metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (default: server.address)")
	cmd.Flags().IntVar(&cmder.historyLimit, "history", 20, "Stored messages loaded into each turn")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Run gin in debug mode")
	cmd.Flags().BoolVar(&cmder.noCORS, "no-cors", false, "Disable CORS headers")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg, err := c.root.loadConfig()
	if err != nil {
		return err
	}
	zapLog, log := c.root.newLogger(cfg, false)
	defer zapLog.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	zapLog.Info("Starting dialogue engine...", zap.String("version", cfg.App.Version))

	comps, err := newComponents(ctx, cfg, zapLog, log)
	if err != nil {
		return err
	}
	defer comps.Close()

	store, storeCheck, err := newSessionStore(ctx, cfg, zapLog, log)
	if err != nil {
		return err
	}
	defer store.Close()

	mode, _ := models.ParseMode(cfg.Dialogue.DefaultMode)
	server := api.NewServer(&api.Config{
		HistoryLimit: c.historyLimit,
		DefaultMode:  mode,
		TurnTimeout:  config.GetDuration(cfg.Server.TurnTimeout),
		EnableCORS:   !c.noCORS,
		Debug:        c.debug,
		Version:      cfg.App.Version,
	}, comps.engine, store, log, append(comps.checks, storeCheck)...)

	addr := cfg.Server.Address
	if c.listen != "" {
		addr = c.listen
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLog.Info("API server listening", zap.String("address", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLog.Info("Shutdown signal received, draining requests...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("API server stopped with error", zap.Error(err))
		return err
	}
	zapLog.Info("Dialogue engine stopped")
	return nil
}
