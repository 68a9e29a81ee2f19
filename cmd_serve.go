package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/xxxbrian/qx-converter/internal/cache"
	"github.com/xxxbrian/qx-converter/internal/converter"
	"github.com/xxxbrian/qx-converter/internal/fetcher"
	"github.com/xxxbrian/qx-converter/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversions over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.Serve.Addr, _ = cmd.Flags().GetString("addr")
		}
		logger := slog.Default()

		resultCache := cache.NewResultCache(cfg.Serve.CacheSize, cfg.Serve.ResultTTL)
		srv := server.NewServer(
			converter.NewConverter(cfg.ConverterOptions()),
			fetcher.NewFetcher(),
			resultCache,
			logger,
		)

		mux := http.NewServeMux()
		srv.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              cfg.Serve.Addr,
			Handler:           server.LoggingMiddleware(logger, mux),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("starting server", "addr", cfg.Serve.Addr, "result_ttl", cfg.Serve.ResultTTL, "cache_size", cfg.Serve.CacheSize)
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-cmd.Context().Done():
			logger.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(ctx)
		}
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides serve.addr)")
	rootCmd.AddCommand(serveCmd)
}
