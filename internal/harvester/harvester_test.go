package harvester

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/replythread/harvester/internal/browser"
	"github.com/replythread/harvester/internal/enumerator"
	"github.com/replythread/harvester/internal/metrics"
	"github.com/replythread/harvester/internal/model"
	"github.com/replythread/harvester/internal/pacing"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

var errSelectorTimeout = errors.New("selector never appeared")

func rootCardHTML(id string) string {
	return `<article data-testid="tweet">
		<a href="/handle/status/` + id + `"><time datetime="2024-01-01T00:00:00Z">now</time></a>
		<div data-testid="User-Name">Handle Owner@handle</div>
		<div data-testid="tweetText">root post ` + id + `</div>
	</article>`
}

func replyCardHTML(id string) string {
	return `<article data-testid="tweet">
		<a href="/someone/status/` + id + `"><time datetime="2024-01-01T00:01:00Z">now</time></a>
		<div data-testid="User-Name">Someone@someone</div>
		<div data-testid="tweetText">reply ` + id + `</div>
	</article>`
}

func fastBudgets() enumerator.Budgets {
	return enumerator.Budgets{
		ReplyScrollDelayMs:     0,
		ScrollBudget:           2,
		ConsecutiveNoNewPhaseA: 1,
		BottomSweepRounds:      1,
		BottomSweepNoNew:       1,
	}
}

func TestScrapeRootPostHarvestsRootAndReplies(t *testing.T) {
	t.Parallel()

	script := &browser.FakeScript{
		Rounds: [][]browser.Card{
			{{TopY: 0, HTML: rootCardHTML("1")}, {TopY: 10, HTML: replyCardHTML("2")}},
		},
		BodyText: "ordinary thread body",
	}
	page := browser.NewFakePage(script)
	h := New(page, pacing.NewPolicy(model.PacingNormal), fastBudgets(), nil)

	var roots []model.RootPost
	var replies []model.Reply
	cb := Callbacks{
		OnRootPost: func(r model.RootPost) error { roots = append(roots, r); return nil },
		OnReply:    func(r model.Reply) error { replies = append(replies, r); return nil },
	}

	count, err := h.ScrapeRootPost(context.Background(), "1", model.ReplyScrapeOptions{}, cb)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Len(t, roots, 1)
	require.Equal(t, "1", roots[0].ID)
	require.Len(t, replies, 1)
	require.Equal(t, "2", replies[0].ID)
}

func TestScrapeRootPostClassifiesLoginWallWhenRootCardMissing(t *testing.T) {
	t.Parallel()

	script := &browser.FakeScript{
		Rounds:   [][]browser.Card{},
		BodyText: "View 12 replies\nLog in",
	}
	page := &waitFailPage{FakePage: browser.NewFakePage(script)}
	h := New(page, pacing.NewPolicy(model.PacingNormal), fastBudgets(), nil)

	_, err := h.ScrapeRootPost(context.Background(), "1", model.ReplyScrapeOptions{}, Callbacks{})
	require.ErrorIs(t, err, enumerator.ErrLoginWall)
}

func TestScrapeRootPostClassifiesRootUnavailable(t *testing.T) {
	t.Parallel()

	script := &browser.FakeScript{
		Rounds:   [][]browser.Card{},
		BodyText: "This post was deleted by the author.",
	}
	page := &waitFailPage{FakePage: browser.NewFakePage(script)}
	h := New(page, pacing.NewPolicy(model.PacingNormal), fastBudgets(), nil)

	_, err := h.ScrapeRootPost(context.Background(), "1", model.ReplyScrapeOptions{}, Callbacks{})
	require.ErrorIs(t, err, enumerator.ErrRootUnavailable)
}

func TestScrapeRootPostSurfacesNonRetryableNavigationErrorImmediately(t *testing.T) {
	t.Parallel()

	navErr := errors.New("HTTP 404: page not found")
	script := &browser.FakeScript{GotoErr: navErr}
	page := browser.NewFakePage(script)
	h := New(page, pacing.NewPolicy(model.PacingNormal), fastBudgets(), nil)

	_, err := h.ScrapeRootPost(context.Background(), "1", model.ReplyScrapeOptions{}, Callbacks{})
	require.ErrorIs(t, err, ErrNoWorkingPermalink)
	require.ErrorContains(t, err, navErr.Error())
}

// waitFailPage wraps a FakePage but always fails WaitForSelector, so the
// harvester falls through to classifyMissingRootCard.
type waitFailPage struct {
	*browser.FakePage
}

func (p *waitFailPage) WaitForSelector(context.Context, string, time.Duration) error {
	return errSelectorTimeout
}
