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

	"github.com/replythread/harvester/internal/httpapi"
)

const shutdownGrace = 10 * time.Second

// newServeCmd starts the long-running HTTP surface (health, metrics,
// progress polling) that sits alongside whatever harvests are in flight.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server exposing health, metrics, and progress endpoints.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := appInstance.GetLogger()

			server := httpapi.NewServer(appInstance.GetProgress(), logger)
			httpServer := &http.Server{
				Addr:    appInstance.GetConfig().HTTPAddr,
				Handler: server.Handler(),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("http server listening", zap.String("addr", httpServer.Addr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
				logger.Info("shutdown signal received")
			case err := <-errCh:
				return err
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
}
