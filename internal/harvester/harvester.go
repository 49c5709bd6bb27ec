// Package harvester implements the Account-Page and Single-Post Harvesters:
// the entry points that open a profile or permalink page and delegate to
// the Reply Enumerator for each root post they discover.
package harvester

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/replythread/harvester/internal/browser"
	"github.com/replythread/harvester/internal/dom"
	"github.com/replythread/harvester/internal/enumerator"
	"github.com/replythread/harvester/internal/logging"
	"github.com/replythread/harvester/internal/model"
	"github.com/replythread/harvester/internal/pacing"
	"github.com/replythread/harvester/internal/persistence"
	"github.com/replythread/harvester/internal/retry"
)

// navigate goes to url with the fixed 3s/5s/7s navigation retry schedule.
func (h *Harvester) navigate(ctx context.Context, url string, timeout time.Duration) error {
	return retry.Navigation(ctx, func(ctx context.Context) error {
		return h.page.Goto(ctx, url, timeout)
	})
}

// Host is the platform web origin candidate list the harvester tries, in
// order, for a single-post permalink.
var Host = []string{"x.com", "twitter.com"}

const (
	profileGotoTimeout  = 15 * time.Second
	profileWaitTimeout  = 15 * time.Second
	permalinkGotoTimeout = 25 * time.Second
	spaSettleDelay       = 4 * time.Second
)

// ErrNoWorkingPermalink is terminal: every candidate host failed navigation.
var ErrNoWorkingPermalink = errors.New("no permalink candidate reachable")

// Callbacks are invoked by both harvesters as records are discovered.
type Callbacks struct {
	OnRootPost func(model.RootPost) error
	OnReply    func(model.Reply) error
	OnProgress func(model.ScrapeProgress)
}

// Harvester drives both the Account-Page and Single-Post flows over one
// acquired Page.
type Harvester struct {
	page    browser.Page
	pacer   *pacing.Policy
	budgets enumerator.Budgets
	logger  *zap.Logger
}

// New constructs a Harvester bound to an already-acquired Page.
func New(page browser.Page, pacer *pacing.Policy, budgets enumerator.Budgets, logger *zap.Logger) *Harvester {
	return &Harvester{page: page, pacer: pacer, budgets: budgets, logger: logging.NopOrDefault(logger)}
}

// ScrapeAccount iterates handle's recent posts (up to maxPosts unique root
// ids above the recommendation cutoff), emitting each root then delegating
// to the Reply Enumerator.
func (h *Harvester) ScrapeAccount(ctx context.Context, handle string, maxPosts int, opts model.ReplyScrapeOptions, cb Callbacks) (postsFound, repliesFound int, err error) {
	profileURL := fmt.Sprintf("https://%s/%s", Host[0], handle)
	if err := h.navigate(ctx, profileURL, profileGotoTimeout); err != nil {
		return 0, 0, fmt.Errorf("goto profile: %w", err)
	}
	if err := h.page.WaitForSelector(ctx, dom.TabListSelector, profileWaitTimeout); err != nil {
		return 0, 0, fmt.Errorf("wait for profile tabs: %w", err)
	}
	if err := h.page.WaitForSelector(ctx, dom.PostCardSelector, profileWaitTimeout); err != nil {
		return 0, 0, fmt.Errorf("wait for post cards: %w", err)
	}

	rootIDs, err := h.collectRootIDs(ctx, maxPosts)
	if err != nil {
		return 0, 0, fmt.Errorf("collect root ids: %w", err)
	}

	totalPosts := len(rootIDs)
	for i, rootID := range rootIDs {
		if cb.OnProgress != nil {
			cb.OnProgress(model.ScrapeProgress{
				Stage:       model.StageFetchingPosts,
				PostsFound:  postsFound,
				CurrentPost: i + 1,
				TotalPosts:  totalPosts,
				Message:     "harvesting root " + rootID,
			})
		}

		permalink := fmt.Sprintf("https://%s/%s/status/%s", Host[0], handle, rootID)
		if err := h.navigate(ctx, permalink, permalinkGotoTimeout); err != nil {
			h.logger.Warn("permalink navigation failed, skipping root", zap.String("rootId", rootID), zap.Error(err))
			continue
		}
		if err := h.page.WaitForSelector(ctx, dom.PostCardSelector, profileWaitTimeout); err != nil {
			h.logger.Warn("root post card never appeared, skipping root", zap.String("rootId", rootID), zap.Error(err))
			continue
		}

		root, repliesThisRoot, err := h.harvestOneRoot(ctx, rootID, opts, cb)
		if err != nil {
			if enumerator.IsLoginWall(err) {
				return postsFound, repliesFound, err
			}
			h.logger.Warn("root enumeration failed, continuing", zap.String("rootId", rootID), zap.Error(err))
			continue
		}
		_ = root
		postsFound++
		repliesFound += repliesThisRoot

		if i < len(rootIDs)-1 {
			if err := h.pacer.BetweenPosts(ctx); err != nil {
				return postsFound, repliesFound, fmt.Errorf("between posts delay: %w", err)
			}
		}
	}

	return postsFound, repliesFound, nil
}

// collectRootIDs scrolls the profile up to maxPosts unique root-post ids
// whose top-y is within the recommendation cutoff.
func (h *Harvester) collectRootIDs(ctx context.Context, maxPosts int) ([]string, error) {
	seen := map[string]bool{}
	var ids []string

	const maxProfileScrollRounds = 60
	for round := 0; round < maxProfileScrollRounds && len(ids) < maxPosts; round++ {
		cards, err := h.page.Cards(ctx, dom.PostCardSelector)
		if err != nil {
			return nil, fmt.Errorf("read profile cards: %w", err)
		}
		cutoffY := math.Inf(1)
		if y, found, err := h.page.CutoffHeadingY(ctx); err == nil && found {
			cutoffY = y
		}

		newThisRound := 0
		for _, card := range cards {
			if len(ids) >= maxPosts {
				break
			}
			if card.TopY > cutoffY {
				continue
			}
			id, ok := dom.ExtractIDFromPostCard(card.HTML, "")
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
			newThisRound++
		}

		if len(ids) >= maxPosts {
			break
		}
		if err := h.page.ScrollToBottom(ctx); err != nil {
			return nil, fmt.Errorf("scroll profile: %w", err)
		}
		if err := h.pacer.Scroll(ctx); err != nil {
			return nil, fmt.Errorf("profile scroll delay: %w", err)
		}
		if newThisRound == 0 && round > 2 {
			break
		}
	}
	return ids, nil
}

// harvestOneRoot extracts and emits the root card already on-page, then
// runs the Reply Enumerator for it.
func (h *Harvester) harvestOneRoot(ctx context.Context, rootID string, opts model.ReplyScrapeOptions, cb Callbacks) (model.RootPost, int, error) {
	cards, err := h.page.Cards(ctx, dom.PostCardSelector)
	if err != nil {
		return model.RootPost{}, 0, fmt.Errorf("read root card: %w", err)
	}
	if len(cards) == 0 {
		return model.RootPost{}, 0, errors.New("no cards on permalink page")
	}
	root, ok := dom.ExtractRootPost(cards[0].HTML, rootID)
	if !ok {
		return model.RootPost{}, 0, errors.New("root card extraction failed")
	}
	if cb.OnRootPost != nil {
		if err := cb.OnRootPost(root); err != nil {
			h.logger.Warn("onRootPost callback failed", zap.Error(err))
		}
	}

	replies := 0
	enum := enumerator.New(h.page, h.pacer, h.budgets, h.logger)
	err = enum.Run(ctx, rootID, opts,
		func(r model.Reply) error {
			replies++
			if cb.OnReply != nil {
				return cb.OnReply(r)
			}
			return nil
		},
		func(emitted int) {
			if cb.OnProgress != nil {
				cb.OnProgress(model.ScrapeProgress{
					Stage:        model.StageFetchingReplies,
					RepliesFound: emitted,
					Message:      "enumerating replies for " + rootID,
				})
			}
		},
	)
	return root, replies, err
}

// ScrapeRootPost opens rootID's permalink directly (trying candidate hosts
// in order) and runs the Reply Enumerator against it.
func (h *Harvester) ScrapeRootPost(ctx context.Context, rootID string, opts model.ReplyScrapeOptions, cb Callbacks) (repliesFound int, err error) {
	var lastErr error
	reached := false
	for _, host := range Host {
		permalink := fmt.Sprintf("https://%s/i/status/%s", host, rootID)
		if err := h.navigate(ctx, permalink, permalinkGotoTimeout); err != nil {
			lastErr = err
			continue
		}
		reached = true
		break
	}
	if !reached {
		return 0, fmt.Errorf("%w: %v", ErrNoWorkingPermalink, lastErr)
	}

	waitErr := h.page.WaitForSelector(ctx, dom.PostCardSelector, permalinkGotoTimeout)
	if err := h.pacer.Fixed(ctx, spaSettleDelay); err != nil {
		return 0, fmt.Errorf("spa settle delay: %w", err)
	}
	if waitErr != nil {
		return 0, h.classifyMissingRootCard(ctx)
	}

	_, replies, err := h.harvestOneRoot(ctx, rootID, opts, cb)
	return replies, err
}

// classifyMissingRootCard differentiates "root unavailable" from
// "login required" once WaitForSelector has already timed out.
func (h *Harvester) classifyMissingRootCard(ctx context.Context) error {
	bodyText, err := h.page.BodyText(ctx)
	if err != nil {
		return fmt.Errorf("read body text after missing root card: %w", err)
	}
	if dom.DetectRootUnavailable(bodyText) {
		return enumerator.ErrRootUnavailable
	}
	cards, _ := h.page.Cards(ctx, dom.PostCardSelector)
	if dom.DetectReplyLoginWall(bodyText, len(cards)) {
		return enumerator.ErrLoginWall
	}
	return errors.New("root post card never appeared")
}
