// Package enumerator implements the Reply Enumerator: the two-phase
// scroll + bottom-sweep state machine that drains every reply under one
// root post. States are SwitchSort -> ScrollRound -> ClickExpand ->
// BottomSweep -> Done, transitioning on newRepliesThisRound and budget
// counters, per SPEC_FULL.md §9's design note.
package enumerator

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/replythread/harvester/internal/browser"
	"github.com/replythread/harvester/internal/dom"
	"github.com/replythread/harvester/internal/logging"
	"github.com/replythread/harvester/internal/model"
	"github.com/replythread/harvester/internal/pacing"
)

// scrollByPixels is the window-scroll step taken once per Phase A round,
// after the targeted card/column scrolls.
const scrollByPixels = 1600

// maxExpandClicksPerRound caps how many fold/expand buttons one round will
// click, per SPEC_FULL.md §4.6.
const maxExpandClicksPerRound = 8

const switchSortPause = 2 * time.Second
const expandClickPause = 4 * time.Second

// OnReply is invoked for every newly discovered reply, in DOM order, before
// the next enumerate step. A returned error is logged and swallowed.
type OnReply func(model.Reply) error

// OnProgress reports the running emitted-reply count after each round.
type OnProgress func(emitted int)

// Enumerator drains replies for one root post under a Page.
type Enumerator struct {
	page    browser.Page
	pacer   *pacing.Policy
	budgets Budgets
	logger  *zap.Logger
}

// New constructs an Enumerator bound to a single Page/root-post run.
func New(page browser.Page, pacer *pacing.Policy, budgets Budgets, logger *zap.Logger) *Enumerator {
	return &Enumerator{page: page, pacer: pacer, budgets: budgets, logger: logging.NopOrDefault(logger)}
}

// Run drives the full state machine for rootID, calling onReply for every
// newly discovered reply and onProgress after every round.
func (e *Enumerator) Run(ctx context.Context, rootID string, opts model.ReplyScrapeOptions, onReply OnReply, onProgress OnProgress) error {
	seen := map[string]bool{rootID: true}
	emitted := 0

	if err := e.switchSort(ctx, opts.SortMode); err != nil {
		return fmt.Errorf("switch sort: %w", err)
	}

	if err := e.checkLoginWall(ctx); err != nil {
		return err
	}

	scrollBudget := e.budgets.ScrollBudget
	noNewStreak := 0
	for round := 0; round < scrollBudget; round++ {
		newCount, err := e.processRound(ctx, rootID, seen, &emitted, onReply)
		if err != nil {
			return err
		}
		onProgress(emitted)

		if newCount > 0 {
			noNewStreak = 0
		} else {
			noNewStreak++
		}

		if err := e.scrollStep(ctx); err != nil {
			return fmt.Errorf("scroll step: %w", err)
		}

		if opts.ExpandFoldedReplies {
			clicked, err := e.page.ClickMatching(ctx, dom.ExpandButtonLabels, maxExpandClicksPerRound)
			if err != nil {
				e.logger.Warn("click expand failed", zap.Error(err))
			} else if clicked > 0 {
				scrollBudget += clicked
				if err := e.pacer.Fixed(ctx, expandClickPause); err != nil {
					return fmt.Errorf("expand pause: %w", err)
				}
			}
		}

		if err := e.replyScrollDelay(ctx); err != nil {
			return fmt.Errorf("scroll delay: %w", err)
		}

		if noNewStreak >= e.budgets.ConsecutiveNoNewPhaseA {
			break
		}
	}

	return e.bottomSweep(ctx, rootID, seen, &emitted, onReply, onProgress)
}

func (e *Enumerator) switchSort(ctx context.Context, mode model.SortMode) error {
	label := dom.SortTabRecent
	if mode == model.SortTop {
		label = dom.SortTabTop
	}
	clicked, err := e.page.ClickTab(ctx, label)
	if err != nil {
		return err
	}
	if !clicked {
		return nil
	}
	return e.pacer.Fixed(ctx, switchSortPause)
}

func (e *Enumerator) checkLoginWall(ctx context.Context) error {
	cards, err := e.page.Cards(ctx, dom.PostCardSelector)
	if err != nil {
		return fmt.Errorf("read cards: %w", err)
	}
	bodyText, err := e.page.BodyText(ctx)
	if err != nil {
		return fmt.Errorf("read body text: %w", err)
	}
	if dom.DetectReplyLoginWall(bodyText, len(cards)) {
		return ErrLoginWall
	}
	return nil
}

// processRound enumerates the current cards, emitting any unseen reply
// whose top-y is within the recommendation cutoff.
func (e *Enumerator) processRound(ctx context.Context, rootID string, seen map[string]bool, emitted *int, onReply OnReply) (int, error) {
	cards, err := e.page.Cards(ctx, dom.PostCardSelector)
	if err != nil {
		return 0, fmt.Errorf("read cards: %w", err)
	}
	cutoffY := math.Inf(1)
	if y, found, err := e.page.CutoffHeadingY(ctx); err != nil {
		e.logger.Warn("cutoff heading probe failed", zap.Error(err))
	} else if found {
		cutoffY = y
	}

	newCount := 0
	for _, card := range cards {
		if card.TopY > cutoffY {
			continue
		}
		id, ok := dom.ExtractIDFromPostCard(card.HTML, rootID)
		if !ok || id == rootID || seen[id] {
			continue
		}
		reply, ok := dom.ExtractReply(card.HTML, id, rootID, rootID)
		if !ok {
			// Per-card extraction failure is swallowed; move to the next card.
			continue
		}
		seen[id] = true
		*emitted++
		newCount++
		if err := onReply(reply); err != nil {
			e.logger.Warn("onReply callback failed", zap.String("replyId", id), zap.Error(err))
		}
	}
	return newCount, nil
}

func (e *Enumerator) scrollStep(ctx context.Context) error {
	if err := e.page.ScrollLastCardIntoView(ctx, dom.PostCardSelector); err != nil {
		return err
	}
	if err := e.page.ScrollColumnToBottom(ctx); err != nil {
		return err
	}
	return e.page.ScrollBy(ctx, scrollByPixels)
}

func (e *Enumerator) replyScrollDelay(ctx context.Context) error {
	return e.pacer.Fixed(ctx, time.Duration(e.budgets.ReplyScrollDelayMs)*time.Millisecond)
}

// bottomSweep drains trailing lazily-loaded batches Phase A missed.
func (e *Enumerator) bottomSweep(ctx context.Context, rootID string, seen map[string]bool, emitted *int, onReply OnReply, onProgress OnProgress) error {
	noNewStreak := 0
	for round := 0; round < e.budgets.BottomSweepRounds; round++ {
		if err := e.page.ScrollToBottom(ctx); err != nil {
			return fmt.Errorf("bottom sweep scroll: %w", err)
		}
		if err := e.replyScrollDelay(ctx); err != nil {
			return fmt.Errorf("bottom sweep delay: %w", err)
		}

		newCount, err := e.processRound(ctx, rootID, seen, emitted, onReply)
		if err != nil {
			return err
		}
		onProgress(*emitted)

		if newCount > 0 {
			noNewStreak = 0
		} else {
			noNewStreak++
		}
		if noNewStreak >= e.budgets.BottomSweepNoNew {
			break
		}
	}
	return nil
}
