package browser

import (
	"context"
	"strings"
	"time"

	"github.com/replythread/harvester/internal/model"
)

// FakeScript scripts one navigation's worth of scrollable content for
// FakePage. Each call to Cards advances through Rounds in order; the last
// round repeats once exhausted, so tests can assert "no new content" tails
// without pre-computing an exact round count.
type FakeScript struct {
	// Rounds is the sequence of card sets returned by successive Cards
	// calls (simulating content appearing as the page scrolls).
	Rounds [][]Card
	// CutoffY is returned by CutoffHeadingY; CutoffFound gates whether it
	// applies at all.
	CutoffY     float64
	CutoffFound bool
	// BodyText is returned verbatim by BodyText.
	BodyText string
	// TabLabels lists sort-tab labels ClickTab will recognize.
	TabLabels []string
	// ExpandButtonCount is how many expansion buttons remain clickable;
	// each ClickMatching call consumes up to `max` of them.
	ExpandButtonCount int
	// GotoErr, when set, is returned by every Goto call instead of nil.
	GotoErr error
}

// FakePage is an in-memory Page used by tests. It never touches a real
// browser; DOM state is entirely driven by a FakeScript.
type FakePage struct {
	script      *FakeScript
	roundIdx    int
	closed      bool
	goneURL     string
	scrollCalls int
}

// NewFakePage wraps script as a Page.
func NewFakePage(script *FakeScript) *FakePage {
	return &FakePage{script: script}
}

// Goto implements Page.
func (p *FakePage) Goto(_ context.Context, url string, _ time.Duration) error {
	p.goneURL = url
	return p.script.GotoErr
}

// WaitForSelector implements Page; the fake always succeeds immediately.
func (p *FakePage) WaitForSelector(_ context.Context, _ string, _ time.Duration) error {
	return nil
}

// Cards implements Page, advancing through the script's rounds.
func (p *FakePage) Cards(_ context.Context, _ string) ([]Card, error) {
	if len(p.script.Rounds) == 0 {
		return nil, nil
	}
	idx := p.roundIdx
	if idx >= len(p.script.Rounds) {
		idx = len(p.script.Rounds) - 1
	} else {
		p.roundIdx++
	}
	return p.script.Rounds[idx], nil
}

// CutoffHeadingY implements Page.
func (p *FakePage) CutoffHeadingY(_ context.Context) (float64, bool, error) {
	return p.script.CutoffY, p.script.CutoffFound, nil
}

// BodyText implements Page.
func (p *FakePage) BodyText(_ context.Context) (string, error) {
	return p.script.BodyText, nil
}

// ClickTab implements Page.
func (p *FakePage) ClickTab(_ context.Context, label string) (bool, error) {
	for _, t := range p.script.TabLabels {
		if strings.EqualFold(t, label) {
			return true, nil
		}
	}
	return false, nil
}

// ClickMatching implements Page, consuming up to max from the script's
// remaining expand-button count.
func (p *FakePage) ClickMatching(_ context.Context, patterns []string, max int) (int, error) {
	if len(patterns) == 0 || p.script.ExpandButtonCount <= 0 {
		return 0, nil
	}
	n := max
	if n > p.script.ExpandButtonCount {
		n = p.script.ExpandButtonCount
	}
	p.script.ExpandButtonCount -= n
	return n, nil
}

// ScrollLastCardIntoView implements Page.
func (p *FakePage) ScrollLastCardIntoView(_ context.Context, _ string) error {
	p.scrollCalls++
	return nil
}

// ScrollColumnToBottom implements Page.
func (p *FakePage) ScrollColumnToBottom(_ context.Context) error {
	p.scrollCalls++
	return nil
}

// ScrollBy implements Page.
func (p *FakePage) ScrollBy(_ context.Context, _ int) error {
	p.scrollCalls++
	return nil
}

// ScrollToBottom implements Page.
func (p *FakePage) ScrollToBottom(_ context.Context) error {
	p.scrollCalls++
	return nil
}

// Close implements Page.
func (p *FakePage) Close(_ context.Context) error {
	p.closed = true
	return nil
}

// Closed reports whether Close was called, for test assertions.
func (p *FakePage) Closed() bool { return p.closed }

// FakeDriver is a Driver that hands out FakePages built from a queue of
// scripts, one per Acquire call (or the last script repeated if the queue is
// exhausted).
type FakeDriver struct {
	Scripts     []*FakeScript
	acquireIdx  int
	AcquireErr  error
	closed      bool
	LastBundle  *model.CredentialBundle
}

// Acquire implements Driver.
func (d *FakeDriver) Acquire(_ context.Context, bundle *model.CredentialBundle) (Page, error) {
	if d.AcquireErr != nil {
		return nil, d.AcquireErr
	}
	d.LastBundle = bundle
	if len(d.Scripts) == 0 {
		return NewFakePage(&FakeScript{}), nil
	}
	idx := d.acquireIdx
	if idx >= len(d.Scripts) {
		idx = len(d.Scripts) - 1
	} else {
		d.acquireIdx++
	}
	return NewFakePage(d.Scripts[idx]), nil
}

// Close implements Driver.
func (d *FakeDriver) Close(_ context.Context) error {
	d.closed = true
	return nil
}
