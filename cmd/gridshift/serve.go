package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/beetlebugorg/gridshift/internal/httpapi"
	"github.com/beetlebugorg/gridshift/pkg/gridshift"
)

var (
	serveAddr            string
	serveReadTimeout     time.Duration
	serveWriteTimeout    time.Duration
	serveShutdownTimeout time.Duration
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().DurationVar(&serveReadTimeout, "read-timeout", 15*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&serveWriteTimeout, "write-timeout", 15*time.Second, "HTTP write timeout")
	serveCmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 30*time.Second, "graceful shutdown timeout")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversions over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLoggerAt(slog.LevelInfo)
		specs, opts, err := resolverSpecs(logger)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts.Metrics = gridshift.NewCollector(reg, "gridshift")

		r, err := gridshift.NewResolver(specs, opts)
		if err != nil {
			return err
		}
		defer r.Close()

		server := &http.Server{
			Addr:         serveAddr,
			Handler:      httpapi.NewRouter(httpapi.NewHandler(r, logger), reg),
			ReadTimeout:  serveReadTimeout,
			WriteTimeout: serveWriteTimeout,
		}

		errc := make(chan error, 1)
		go func() {
			logger.Info("HTTP server listening", "address", server.Addr, "entries", len(r.Entries()))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case err := <-errc:
			return err
		case <-quit:
		}

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
			return err
		}
		return <-errc
	},
}
