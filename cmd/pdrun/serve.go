package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve <patch.pd>",
	Short: "Run a patch and expose bridge metrics over HTTP",
	Long: `Runs the patch like "run" but logs events instead of printing them and serves
Prometheus metrics on --addr until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetStringSlice("listen")
		addr := app.cfg.Metrics.Address
		if cmd.Flags().Changed("addr") || addr == "" {
			addr, _ = cmd.Flags().GetString("addr")
		}

		s, err := openSession(app.cfg, app.log, app.metrics, args[0], listen)
		if err != nil {
			return err
		}
		defer s.Close()

		mux := http.NewServeMux()
		mux.Handle(app.cfg.Metrics.Path, promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		serverErrors := make(chan error, 1)
		go func() {
			app.log.Info("serving metrics", zap.String("addr", addr), zap.String("path", app.cfg.Metrics.Path))
			serverErrors <- srv.ListenAndServe()
		}()
		loopErrors := make(chan error, 1)
		go func() { loopErrors <- s.loop(ctx) }()
		go logEvents(ctx, s, app.log)

		var runErr error
		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				runErr = err
			}
			stop()
		case runErr = <-loopErrors:
		case <-ctx.Done():
			app.log.Info("shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.log.Warn("graceful shutdown did not complete", zap.Error(err))
			_ = srv.Close()
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringSliceP("listen", "l", nil, "receiver names to subscribe to (repeatable)")
	serveCmd.Flags().String("addr", ":9464", "metrics listen address (overrides metrics.address)")
}

func logEvents(ctx context.Context, s *session, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.events:
			log.Info("event",
				zap.String("category", e.category),
				zap.String("source", e.source),
				zap.String("text", e.text))
		}
	}
}
