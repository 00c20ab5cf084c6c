package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/daisymeal/cyberdefense/internal/adapters/api"
	"github.com/daisymeal/cyberdefense/internal/adapters/output"
	"github.com/daisymeal/cyberdefense/internal/app"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP inspection API",
	Long: `Start the HTTP API. Each POST /analyze body is one record:

  {"ip": "10.0.0.5", "payload": "' OR 1=1 --", "size": 50}

Examples:
  cyberdefense serve
  cyberdefense serve --addr :8080
  CYBERDEFENSE_OUTPUT_NATS_URL=nats://127.0.0.1:4222 cyberdefense serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8000)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	// Queued alerts are still delivered after a shutdown signal.
	p.dispatcher.Start(context.Background())
	defer func() {
		if err := p.dispatcher.Stop(); err != nil {
			log.Error().Err(err).Msg("Error closing alert outputs")
		}
	}()

	if err := p.startMetrics(); err != nil {
		return err
	}

	if viper.ConfigFileUsed() != "" {
		reloader := app.NewSignatureReloader(viper.GetViper(), p.scanner)
		if p.prom != nil {
			reloader.OnSwap(p.prom.SetSignatureCount)
		}
		reloader.Watch()
	}

	server := api.NewServer(p.service, api.Options{
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Alerts:       p.memory,
		Sources:      p.sources,
		Signatures:   p.scanner,
		Health:       output.NewHealthChecker(p.service, p.dispatcher, output.DefaultHealthCheckerConfig()),
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("hardware", string(p.hardware)).
			Int("signatures", p.scanner.SignatureCount()).
			Msg("cyberdefense listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		if p.prom != nil {
			if perr := p.prom.StopServer(shutdownCtx); perr != nil {
				log.Warn().Err(perr).Msg("Error stopping metrics server")
			}
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	snap := p.metrics.GetSnapshot()
	log.Info().
		Int64("records", snap.TotalRecords).
		Int64("blocked", snap.BlockedRecords).
		Int64("dropped", snap.DroppedRecords).
		Dur("uptime", snap.Uptime).
		Msg("Shutdown complete")
	return nil
}
