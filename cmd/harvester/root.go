// Package main is the harvester CLI entry point.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/replythread/harvester/internal/app"
	harvesterconfig "github.com/replythread/harvester/internal/config"
)

// appKeyType is the context key under which the wired App lives, so
// subcommands can retrieve it without taking it as a constructor argument.
type appKeyType string

const appKey appKeyType = "app"

// newApp is a variable so tests can substitute a mock factory.
var newApp = func(ctx context.Context) (*app.App, error) {
	cfg, err := harvesterconfig.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command, injecting the App
// into every subcommand's context via PersistentPreRunE.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvests reply threads from monitored accounts and posts.",
		Long: `harvester drives a headless-browser (with third-party API fallback)
scrape of public reply threads for a set of monitored accounts or individual
root posts, persisting results as it goes.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close(cmd.Context())
			}
		},
	}

	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute is the CLI's main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		zap.L().Fatal("command execution failed", zap.Error(err))
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}
