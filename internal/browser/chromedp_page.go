package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/replythread/harvester/internal/dom"
	"github.com/replythread/harvester/internal/model"
)

// chromedpPage implements Page over a single chromedp tab context, grounded
// on the teacher's ChromedpRenderer.Render task pattern (network.Enable +
// emulation.SetUserAgentOverride + chromedp.Tasks), generalized from a
// one-shot render to a long-lived interactive session.
type chromedpPage struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// init enables network tracking, overrides UA/viewport, and installs the
// credential bundle's cookies before the page navigates anywhere.
func (p *chromedpPage) init(ctx context.Context, userAgent string, width, height int, bundle *model.CredentialBundle) error {
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(userAgent),
		emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false),
	}
	if bundle != nil {
		for _, c := range bundle.Cookies {
			cookie := c
			if cookie.Domain == "" {
				cookie.Domain = ".x.com"
			}
			if cookie.Path == "" {
				cookie.Path = "/"
			}
			tasks = append(tasks, chromedp.ActionFunc(func(actx context.Context) error {
				return network.SetCookie(cookie.Name, cookie.Value).
					WithDomain(cookie.Domain).
					WithPath(cookie.Path).
					Do(actx)
			}))
		}
	}
	return chromedp.Run(withParentDeadline(p.ctx, ctx), tasks)
}

// withParentDeadline lets an outer caller-supplied context's deadline bound
// a chromedp.Run call issued against the page's own long-lived tab context.
func withParentDeadline(tabCtx, caller context.Context) context.Context {
	if deadline, ok := caller.Deadline(); ok {
		c, cancel := context.WithDeadline(tabCtx, deadline)
		go func() {
			<-caller.Done()
			cancel()
		}()
		return c
	}
	return tabCtx
}

// Goto implements Page.
func (p *chromedpPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	taskCtx, cancel := context.WithTimeout(withParentDeadline(p.ctx, ctx), timeout)
	defer cancel()
	return chromedp.Run(taskCtx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

// WaitForSelector implements Page.
func (p *chromedpPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	taskCtx, cancel := context.WithTimeout(withParentDeadline(p.ctx, ctx), timeout)
	defer cancel()
	return chromedp.Run(taskCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// cardsScript returns, for every element matching selector, its top-Y
// (relative to the document) and outer HTML, in DOM order.
const cardsScript = `
Array.from(document.querySelectorAll(%q)).map(function(el) {
  var r = el.getBoundingClientRect();
  return {topY: r.top + window.scrollY, html: el.outerHTML};
});
`

type cardDTO struct {
	TopY float64 `json:"topY"`
	HTML string  `json:"html"`
}

// Cards implements Page.
func (p *chromedpPage) Cards(ctx context.Context, selector string) ([]Card, error) {
	var dtos []cardDTO
	script := fmt.Sprintf(cardsScript, selector)
	taskCtx := withParentDeadline(p.ctx, ctx)
	if err := chromedp.Run(taskCtx, chromedp.Evaluate(script, &dtos)); err != nil {
		return nil, fmt.Errorf("evaluate cards: %w", err)
	}
	cards := make([]Card, 0, len(dtos))
	for _, d := range dtos {
		cards = append(cards, Card{TopY: d.TopY, HTML: d.HTML})
	}
	return cards, nil
}

// cutoffHeadingScript searches for the first heading-like element whose text
// matches any of the cutoff labels and returns its absolute top-Y.
const cutoffHeadingScript = `
(function(labels) {
  var nodes = document.querySelectorAll('h2, span, div');
  for (var i = 0; i < nodes.length; i++) {
    var t = (nodes[i].textContent || '').trim();
    for (var j = 0; j < labels.length; j++) {
      if (t === labels[j]) {
        var r = nodes[i].getBoundingClientRect();
        return {found: true, y: r.top + window.scrollY};
      }
    }
  }
  return {found: false, y: 0};
})(%s)
`

type cutoffDTO struct {
	Found bool    `json:"found"`
	Y     float64 `json:"y"`
}

// CutoffHeadingY implements Page.
func (p *chromedpPage) CutoffHeadingY(ctx context.Context) (float64, bool, error) {
	labelsJSON, err := marshalStrings(dom.CutoffHeadingLabels)
	if err != nil {
		return 0, false, fmt.Errorf("marshal cutoff labels: %w", err)
	}
	var dto cutoffDTO
	script := fmt.Sprintf(cutoffHeadingScript, labelsJSON)
	taskCtx := withParentDeadline(p.ctx, ctx)
	if err := chromedp.Run(taskCtx, chromedp.Evaluate(script, &dto)); err != nil {
		return 0, false, fmt.Errorf("evaluate cutoff heading: %w", err)
	}
	return dto.Y, dto.Found, nil
}

// BodyText implements Page.
func (p *chromedpPage) BodyText(ctx context.Context) (string, error) {
	var text string
	taskCtx := withParentDeadline(p.ctx, ctx)
	if err := chromedp.Run(taskCtx, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read body text: %w", err)
	}
	return text, nil
}

// clickTabScript clicks the first tab-role element whose text equals label.
const clickTabScript = `
(function(label) {
  var nodes = document.querySelectorAll('[role="tab"]');
  for (var i = 0; i < nodes.length; i++) {
    if ((nodes[i].textContent || '').trim() === label) {
      nodes[i].click();
      return true;
    }
  }
  return false;
})(%q)
`

// ClickTab implements Page.
func (p *chromedpPage) ClickTab(ctx context.Context, label string) (bool, error) {
	var clicked bool
	script := fmt.Sprintf(clickTabScript, label)
	taskCtx := withParentDeadline(p.ctx, ctx)
	if err := chromedp.Run(taskCtx, chromedp.Evaluate(script, &clicked)); err != nil {
		return false, fmt.Errorf("evaluate click tab: %w", err)
	}
	return clicked, nil
}

// clickMatchingScript clicks up to max button/span elements whose text
// matches any of the given regex patterns, returning how many were clicked.
const clickMatchingScript = `
(function(patterns, max) {
  var res = patterns.map(function(p) { return new RegExp(p); });
  var nodes = document.querySelectorAll('button, span[role="button"]');
  var clicked = 0;
  for (var i = 0; i < nodes.length && clicked < max; i++) {
    var t = (nodes[i].textContent || '').trim();
    for (var j = 0; j < res.length; j++) {
      if (res[j].test(t)) {
        nodes[i].click();
        clicked++;
        break;
      }
    }
  }
  return clicked;
})(%s, %d)
`

// ClickMatching implements Page.
func (p *chromedpPage) ClickMatching(ctx context.Context, patterns []string, max int) (int, error) {
	if len(patterns) == 0 || max <= 0 {
		return 0, nil
	}
	patternsJSON, err := marshalStrings(patterns)
	if err != nil {
		return 0, fmt.Errorf("marshal click patterns: %w", err)
	}
	var clicked int
	script := fmt.Sprintf(clickMatchingScript, patternsJSON, max)
	taskCtx := withParentDeadline(p.ctx, ctx)
	if err := chromedp.Run(taskCtx, chromedp.Evaluate(script, &clicked)); err != nil {
		return 0, fmt.Errorf("evaluate click matching: %w", err)
	}
	return clicked, nil
}

// ScrollLastCardIntoView implements Page.
func (p *chromedpPage) ScrollLastCardIntoView(ctx context.Context, selector string) error {
	script := fmt.Sprintf(`(function(){var n=document.querySelectorAll(%q); if(n.length) n[n.length-1].scrollIntoView({block:"center"});})()`, selector)
	taskCtx := withParentDeadline(p.ctx, ctx)
	return chromedp.Run(taskCtx, chromedp.Evaluate(script, nil))
}

// ScrollColumnToBottom implements Page.
func (p *chromedpPage) ScrollColumnToBottom(ctx context.Context) error {
	const script = `(function(){var c=document.querySelector('[data-testid="primaryColumn"]'); if(c) c.scrollTop = c.scrollHeight;})()`
	taskCtx := withParentDeadline(p.ctx, ctx)
	return chromedp.Run(taskCtx, chromedp.Evaluate(script, nil))
}

// ScrollBy implements Page.
func (p *chromedpPage) ScrollBy(ctx context.Context, dy int) error {
	script := fmt.Sprintf(`window.scrollBy(0, %d)`, dy)
	taskCtx := withParentDeadline(p.ctx, ctx)
	return chromedp.Run(taskCtx, chromedp.Evaluate(script, nil))
}

// ScrollToBottom implements Page.
func (p *chromedpPage) ScrollToBottom(ctx context.Context) error {
	const script = `window.scrollTo(0, document.body.scrollHeight)`
	taskCtx := withParentDeadline(p.ctx, ctx)
	return chromedp.Run(taskCtx, chromedp.Evaluate(script, nil))
}

// Close implements Page.
func (p *chromedpPage) Close(_ context.Context) error {
	p.cancel()
	return nil
}
