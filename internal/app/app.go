// Package app initializes and holds the harvester's long-lived services,
// acting as a dependency injection container, grounded on the teacher's
// internal/app.App.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/replythread/harvester/internal/apifyclient"
	"github.com/replythread/harvester/internal/browser"
	harvesterconfig "github.com/replythread/harvester/internal/config"
	"github.com/replythread/harvester/internal/credential"
	"github.com/replythread/harvester/internal/enumerator"
	"github.com/replythread/harvester/internal/logging"
	"github.com/replythread/harvester/internal/metrics"
	"github.com/replythread/harvester/internal/model"
	"github.com/replythread/harvester/internal/orchestrator"
	"github.com/replythread/harvester/internal/pacing"
	"github.com/replythread/harvester/internal/persistence"
	"github.com/replythread/harvester/internal/progress"
)

// App holds all shared, long-lived services, initialized once at startup.
type App struct {
	cfg          harvesterconfig.Config
	logger       *zap.Logger
	store        persistence.Store
	pool         *browser.Pool
	rotator      *credential.Rotator
	pacer        *pacing.Policy
	progress     *progress.Channel
	orchestrator *orchestrator.Orchestrator
}

// New builds the full dependency graph: persistence, credential rotator,
// pacing policy, browser pool, optional Apify client, progress channel, and
// the Orchestrator that ties them together.
func New(ctx context.Context, cfg harvesterconfig.Config) (*App, error) {
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	return newWithStore(ctx, cfg, store)
}

// newWithStore builds the dependency graph over an already-constructed
// store, letting tests pre-seed config (e.g. PROXY_URL) before the Browser
// Pool and Orchestrator are wired.
func newWithStore(ctx context.Context, cfg harvesterconfig.Config, store persistence.Store) (*App, error) {
	logger, err := logging.New(cfg.LogDevelopment)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	metrics.Init()

	rotator := credential.New()
	if err := loadCredentials(ctx, store, rotator); err != nil {
		logger.Warn("failed to load stored credentials", zap.Error(err))
	}

	preset := model.PacingNormal
	if raw, ok, err := store.GetConfig(ctx, persistence.KeyScrapePacingPreset); err == nil && ok {
		preset = model.PacingPreset(raw)
	}
	pacer := pacing.NewPolicy(preset)

	pool := browser.NewPool(cfg.Production, logger)

	store = persistence.NewObservedStore(store, func(ctx context.Context, proxyURL string) {
		pool.SetProxy(ctx, proxyURL)
	})
	if proxyURL, ok, err := store.GetConfig(ctx, persistence.KeyProxyURL); err == nil && ok && proxyURL != "" {
		pool.SetProxy(ctx, proxyURL)
	}

	progressCh := progress.New()

	var apifyClient *apifyclient.Client
	if token, ok, err := store.GetConfig(ctx, persistence.KeyApifyToken); err == nil && ok && token != "" {
		apifyClient = apifyclient.New(token, cfg.ApifyReplyActor, cfg.ApifyTimelineActor, logger)
	}

	budgets := enumerator.BudgetsFromEnv(defaultBudgets(cfg.Production))

	orch := orchestrator.New(pool, rotator, pacer, store, progressCh, apifyClient, budgets, logger)

	return &App{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		pool:         pool,
		rotator:      rotator,
		pacer:        pacer,
		progress:     progressCh,
		orchestrator: orch,
	}, nil
}

func defaultBudgets(production bool) enumerator.Budgets {
	if production {
		return enumerator.ProdBudgets()
	}
	return enumerator.DevBudgets()
}

func newStore(ctx context.Context, cfg harvesterconfig.Config) (persistence.Store, error) {
	if cfg.DatabaseDSN == "" {
		return persistence.NewMemoryStore(), nil
	}
	return persistence.NewPostgresStore(ctx, cfg.DatabaseDSN)
}

// loadCredentials seeds the rotator from X_COOKIES_LIST (preferred) or
// falls back to the single X_COOKIES bundle.
func loadCredentials(ctx context.Context, store persistence.Store, rotator *credential.Rotator) error {
	if raw, ok, err := store.GetConfig(ctx, persistence.KeyXCookiesList); err == nil && ok && raw != "" {
		bundles, err := decodeBundleList(raw)
		if err != nil {
			return err
		}
		rotator.SetAll(bundles)
		return nil
	}
	if raw, ok, err := store.GetConfig(ctx, persistence.KeyXCookies); err == nil && ok && raw != "" {
		bundle, err := decodeBundle(raw)
		if err != nil {
			return err
		}
		rotator.SetAll([]model.CredentialBundle{bundle})
	}
	return nil
}

// GetLogger returns the shared zap logger instance.
func (a *App) GetLogger() *zap.Logger { return a.logger }

// GetOrchestrator returns the wired Orchestrator.
func (a *App) GetOrchestrator() *orchestrator.Orchestrator { return a.orchestrator }

// GetProgress returns the process-wide Progress Channel.
func (a *App) GetProgress() *progress.Channel { return a.progress }

// GetRotator returns the credential rotator, for hot add/remove via an
// external admin surface.
func (a *App) GetRotator() *credential.Rotator { return a.rotator }

// GetPool returns the shared browser pool.
func (a *App) GetPool() *browser.Pool { return a.pool }

// GetConfig returns the process's own static configuration.
func (a *App) GetConfig() harvesterconfig.Config { return a.cfg }

// Close releases the shared browser instance and, if the configured store
// holds its own resources (e.g. a Postgres connection pool), closes those
// too. ObservedStore.Close is a no-op when the wrapped store (e.g.
// MemoryStore) has none.
func (a *App) Close(ctx context.Context) {
	a.logger.Info("shutting down application services")
	if err := a.pool.Close(ctx); err != nil {
		a.logger.Warn("error closing browser pool", zap.Error(err))
	}
	if err := a.store.(*persistence.ObservedStore).Close(); err != nil {
		a.logger.Warn("error closing store", zap.Error(err))
	}
}
