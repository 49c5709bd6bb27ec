// Package orchestrator implements the two entry points external callers
// use: scrapeAccount and scrapeRootPost. It selects between the browser and
// API branches, applies the hard wall-clock cap, and normalizes every
// terminal error into a structured HarvestResult.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/replythread/harvester/internal/apifyclient"
	"github.com/replythread/harvester/internal/browser"
	"github.com/replythread/harvester/internal/credential"
	"github.com/replythread/harvester/internal/enumerator"
	"github.com/replythread/harvester/internal/harvester"
	"github.com/replythread/harvester/internal/logging"
	"github.com/replythread/harvester/internal/metrics"
	"github.com/replythread/harvester/internal/model"
	"github.com/replythread/harvester/internal/pacing"
	"github.com/replythread/harvester/internal/persistence"
	"github.com/replythread/harvester/internal/progress"
)

// WallClockCap is the hard timeout applied to every entry-point run.
const WallClockCap = 10 * time.Minute

// Orchestrator wires together the process-global resources and drives the
// method-selection algorithm.
type Orchestrator struct {
	driver   browser.Driver
	rotator  *credential.Rotator
	pacer    *pacing.Policy
	store    persistence.Store
	progress *progress.Channel
	apify    *apifyclient.Client
	logger   *zap.Logger
	budgets  enumerator.Budgets
}

// New constructs an Orchestrator. apify may be nil when no token is
// configured; method=api then fails with ErrAPITokenRequired and auto mode
// does not fall back.
func New(driver browser.Driver, rotator *credential.Rotator, pacer *pacing.Policy, store persistence.Store, ch *progress.Channel, apify *apifyclient.Client, budgets enumerator.Budgets, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		driver:   driver,
		rotator:  rotator,
		pacer:    pacer,
		store:    store,
		progress: ch,
		apify:    apify,
		budgets:  budgets,
		logger:   logging.NopOrDefault(logger),
	}
}

// ErrAPITokenRequired is terminal: method=api was requested but no token is
// configured.
var ErrAPITokenRequired = errors.New("api method requires an apify token")

// ScrapeAccount is the account-harvest entry point.
func (o *Orchestrator) ScrapeAccount(ctx context.Context, handle string, maxPosts int, opts model.ReplyScrapeOptions, preferredMethod string) model.HarvestResult {
	targetKey := model.AccountTargetKey(handle)
	return o.run(ctx, targetKey, preferredMethod, func(ctx context.Context, method model.HarvestMethod) (int, int, error) {
		switch method {
		case model.MethodAPI:
			return o.scrapeAccountViaAPI(ctx, targetKey, handle, maxPosts, opts)
		default:
			return o.scrapeAccountViaBrowser(ctx, targetKey, handle, maxPosts, opts)
		}
	})
}

// ScrapeRootPost is the single-post-harvest entry point.
func (o *Orchestrator) ScrapeRootPost(ctx context.Context, rootID string, opts model.ReplyScrapeOptions, preferredMethod string) model.HarvestResult {
	targetKey := model.TweetTargetKey(rootID)
	return o.run(ctx, targetKey, preferredMethod, func(ctx context.Context, method model.HarvestMethod) (int, int, error) {
		switch method {
		case model.MethodAPI:
			return o.scrapeRootPostViaAPI(ctx, targetKey, rootID, opts)
		default:
			return o.scrapeRootPostViaBrowser(ctx, targetKey, rootID, opts)
		}
	})
}

type runFn func(ctx context.Context, method model.HarvestMethod) (postsFound, repliesFound int, err error)

// run applies the wall-clock cap, method selection, and auto-fallback
// policy shared by both entry points.
func (o *Orchestrator) run(ctx context.Context, targetKey string, preferredMethod string, fn runFn) model.HarvestResult {
	runID := uuid.NewString()
	method := model.NormalizeMethod(preferredMethod)
	o.progress.Clear(targetKey)
	metrics.IncActiveHarvests()
	defer metrics.DecActiveHarvests()
	start := time.Now()
	o.logger.Info("harvest run starting", zap.String("runId", runID), zap.String("targetKey", targetKey), zap.String("method", string(method)))

	runCtx, cancel := context.WithTimeout(ctx, WallClockCap)
	defer cancel()

	if method == model.MethodAPI && o.apify == nil {
		return o.fail(runID, targetKey, model.MethodAPI, ErrAPITokenRequired)
	}

	attemptMethod := method
	if method == model.MethodAuto {
		attemptMethod = model.MethodBrowser
	}

	posts, replies, err := fn(runCtx, attemptMethod)
	if err == nil {
		metrics.ObserveHarvestDuration(string(attemptMethod), "success", time.Since(start))
		return o.succeed(runID, targetKey, attemptMethod, posts, replies)
	}

	if method == model.MethodAuto && o.apify != nil && o.shouldFallback(err) {
		reason := "auto_terminal_error"
		if browser.IsLaunchFailure(err) {
			reason = "launch_failure"
		}
		metrics.ObserveAPIFallback(reason)
		o.logger.Warn("falling back to api client", zap.String("runId", runID), zap.String("targetKey", targetKey), zap.String("reason", reason), zap.Error(err))

		posts, replies, fallbackErr := fn(runCtx, model.MethodAPI)
		if fallbackErr == nil {
			metrics.ObserveHarvestDuration(string(model.MethodAPI), "success", time.Since(start))
			return o.succeed(runID, targetKey, model.MethodAPI, posts, replies)
		}
		metrics.ObserveHarvestDuration(string(model.MethodAPI), "error", time.Since(start))
		return o.fail(runID, targetKey, model.MethodAPI, fallbackErr)
	}

	metrics.ObserveHarvestDuration(string(attemptMethod), "error", time.Since(start))
	return o.fail(runID, targetKey, attemptMethod, err)
}

// shouldFallback reports whether err is eligible for auto-mode API
// fallback: every error qualifies, launch failure or otherwise, except one
// that is or wraps context.DeadlineExceeded.
func (o *Orchestrator) shouldFallback(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func (o *Orchestrator) succeed(runID, targetKey string, method model.HarvestMethod, posts, replies int) model.HarvestResult {
	o.progress.Set(targetKey, model.ScrapeProgress{
		Stage:        model.StageComplete,
		PostsFound:   posts,
		RepliesFound: replies,
		Message:      "harvest complete",
	})
	metrics.ObservePosts(string(method), posts)
	metrics.ObserveReplies(string(method), replies)
	o.logger.Info("harvest run complete", zap.String("runId", runID), zap.String("targetKey", targetKey), zap.Int("posts", posts), zap.Int("replies", replies))
	return model.HarvestResult{RunID: runID, Success: true, Method: method, PostsFound: posts, RepliesFound: replies}
}

func (o *Orchestrator) fail(runID, targetKey string, method model.HarvestMethod, err error) model.HarvestResult {
	o.progress.Set(targetKey, model.ScrapeProgress{
		Stage:   model.StageError,
		Message: err.Error(),
	})
	o.logger.Warn("harvest run failed", zap.String("runId", runID), zap.String("targetKey", targetKey), zap.Error(err))
	return model.HarvestResult{RunID: runID, Success: false, Method: method, Error: err.Error()}
}

// scrapeAccountViaBrowser acquires a page, runs the Account-Page Harvester,
// and always releases the page.
func (o *Orchestrator) scrapeAccountViaBrowser(ctx context.Context, targetKey, handle string, maxPosts int, opts model.ReplyScrapeOptions) (int, int, error) {
	bundle, hasCred := o.rotator.Next()
	if hasCred {
		metrics.ObserveCredentialRotation()
	}
	var bundlePtr *model.CredentialBundle
	if hasCred {
		bundlePtr = &bundle
	}

	page, err := o.driver.Acquire(ctx, bundlePtr)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", browser.ErrLaunchFailed, err)
	}
	defer page.Close(ctx)

	h := harvester.New(page, o.pacer, o.budgets, o.logger)
	cb := harvester.Callbacks{
		OnRootPost: func(r model.RootPost) error { return o.store.UpsertRootPost(ctx, r) },
		OnReply:    func(r model.Reply) error { return o.store.UpsertReply(ctx, r) },
		OnProgress: func(p model.ScrapeProgress) { o.progress.Set(targetKey, p) },
	}
	return h.ScrapeAccount(ctx, handle, maxPosts, opts, cb)
}

func (o *Orchestrator) scrapeRootPostViaBrowser(ctx context.Context, targetKey, rootID string, opts model.ReplyScrapeOptions) (int, int, error) {
	bundle, hasCred := o.rotator.Next()
	if hasCred {
		metrics.ObserveCredentialRotation()
	}
	var bundlePtr *model.CredentialBundle
	if hasCred {
		bundlePtr = &bundle
	}

	page, err := o.driver.Acquire(ctx, bundlePtr)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", browser.ErrLaunchFailed, err)
	}
	defer page.Close(ctx)

	h := harvester.New(page, o.pacer, o.budgets, o.logger)
	posted := false
	cb := harvester.Callbacks{
		OnRootPost: func(r model.RootPost) error { posted = true; return o.store.UpsertRootPost(ctx, r) },
		OnReply:    func(r model.Reply) error { return o.store.UpsertReply(ctx, r) },
		OnProgress: func(p model.ScrapeProgress) { o.progress.Set(targetKey, p) },
	}
	replies, err := h.ScrapeRootPost(ctx, rootID, opts, cb)
	if err != nil {
		return 0, replies, err
	}
	posts := 0
	if posted {
		posts = 1
	}
	return posts, replies, nil
}

func (o *Orchestrator) scrapeAccountViaAPI(ctx context.Context, targetKey, handle string, maxPosts int, opts model.ReplyScrapeOptions) (int, int, error) {
	rootIDs, err := o.apify.FetchTimeline(ctx, handle, maxPosts)
	if err != nil {
		return 0, 0, err
	}
	postsFound, repliesFound := 0, 0
	for _, rootID := range rootIDs {
		posts, replies, err := o.scrapeRootPostViaAPI(ctx, targetKey, rootID, opts)
		if err != nil {
			o.logger.Warn("api reply fetch failed for root, continuing", zap.String("rootId", rootID), zap.Error(err))
			continue
		}
		postsFound += posts
		repliesFound += replies
	}
	return postsFound, repliesFound, nil
}

func (o *Orchestrator) scrapeRootPostViaAPI(ctx context.Context, targetKey, rootID string, opts model.ReplyScrapeOptions) (int, int, error) {
	const maxReplies = 2000
	posted := false
	repliesFound := 0
	err := o.apify.FetchReplies(ctx, rootID, opts, maxReplies,
		func(r model.RootPost) error { posted = true; return o.store.UpsertRootPost(ctx, r) },
		func(r model.Reply) error { repliesFound++; return o.store.UpsertReply(ctx, r) },
		func(persisted int) {
			o.progress.Set(targetKey, model.ScrapeProgress{
				Stage:        model.StageFetchingReplies,
				RepliesFound: persisted,
				Message:      "fetching via fallback api",
			})
		},
	)
	if err != nil {
		return 0, repliesFound, err
	}
	posts := 0
	if posted {
		posts = 1
	}
	return posts, repliesFound, nil
}
