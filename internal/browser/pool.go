package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/replythread/harvester/internal/logging"
	"github.com/replythread/harvester/internal/model"
)

// ErrLaunchFailed is returned (wrapped) when every candidate in the launch
// chain fails. The Orchestrator matches on this via IsLaunchFailure to
// decide whether to fall back to the API client in auto mode.
var ErrLaunchFailed = errors.New("browser launch failed")

// IsLaunchFailure reports whether err represents a browser launch failure,
// as opposed to a navigation or extraction error encountered afterward.
func IsLaunchFailure(err error) bool {
	return errors.Is(err, ErrLaunchFailed)
}

// desktopUserAgents is the fixed set the Browser Pool randomizes from.
var desktopUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// viewport bounds the small randomized viewport range the pool applies to
// every new context.
const (
	viewportWidthBase   = 1280
	viewportWidthJitter = 160
	viewportHeightBase  = 800
	viewportHeightJitter = 120
)

// localBrowserPaths is probed, in order, when no bundled slim browser is
// available and CHROME_EXECUTABLE_PATH is unset.
var localBrowserPaths = map[string][]string{
	"linux": {
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
	},
	"darwin": {
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	},
	"windows": {
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	},
}

// acquireTimeout bounds Pool.Acquire per SPEC_FULL.md §5.
const acquireTimeout = 30 * time.Second

// credentialRPS/credentialBurst bound how often any one credential identity
// may acquire a fresh tab, as a backstop against the pacing policy being
// misconfigured or bypassed entirely (anonymous acquisitions share one
// bucket). Grounded on the teacher's renderer_chromedp.go domainLimiters,
// generalized from per-domain to per-credential since every acquisition
// targets the same platform host.
const (
	credentialRPS   = 0.5
	credentialBurst = 1
)

// Pool is the process-wide lazily-launched browser singleton.
type Pool struct {
	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	proxyURL      string
	production    bool
	logger        *zap.Logger
	limiters      sync.Map // credential identity -> *rate.Limiter
}

// NewPool constructs an unlaunched Pool. production gates whether the named
// non-production browser channel is a valid launch candidate.
func NewPool(production bool, logger *zap.Logger) *Pool {
	return &Pool{production: production, logger: logging.NopOrDefault(logger)}
}

// credentialIdentity derives the rate-limiter bucket key for a credential
// bundle: its auth_token cookie value, or "anonymous" when none is set.
func credentialIdentity(bundle *model.CredentialBundle) string {
	if bundle == nil {
		return "anonymous"
	}
	for _, c := range bundle.Cookies {
		if c.Name == "auth_token" && c.Value != "" {
			return c.Value
		}
	}
	return "anonymous"
}

// limiterFor returns the shared rate limiter for a credential identity,
// creating it on first use.
func (p *Pool) limiterFor(identity string) *rate.Limiter {
	val, _ := p.limiters.LoadOrStore(identity, rate.NewLimiter(rate.Limit(credentialRPS), credentialBurst))
	return val.(*rate.Limiter)
}

// SetProxy updates the proxy URL applied to future launches. If it differs
// from the currently active browser's proxy, the browser is closed so the
// next Acquire relaunches with the new setting.
func (p *Pool) SetProxy(ctx context.Context, proxyURL string) {
	p.mu.Lock()
	changed := proxyURL != p.proxyURL
	p.proxyURL = proxyURL
	p.mu.Unlock()
	if changed {
		_ = p.Close(ctx)
	}
}

// ProxyURL returns the proxy currently applied to future launches, for
// tests and diagnostics.
func (p *Pool) ProxyURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.proxyURL
}

// resolveProxy prefers PROXY_URL, falling back to the standard proxy env
// vars per SPEC_FULL.md §6.
func (p *Pool) resolveProxy() string {
	if p.proxyURL != "" {
		return p.proxyURL
	}
	for _, envVar := range []string{"HTTPS_PROXY", "https_proxy", "ALL_PROXY", "all_proxy", "HTTP_PROXY", "http_proxy"} {
		if v := os.Getenv(envVar); v != "" {
			return v
		}
	}
	return ""
}

// launchCandidate is one entry in the browser discovery chain.
type launchCandidate struct {
	name string
	path string
	ok   bool
}

// candidates returns the launch chain in priority order: bundled slim
// browser (production/Linux only), locally installed browser, named channel
// (non-production only).
func (p *Pool) candidates() []launchCandidate {
	var out []launchCandidate
	if p.production && runtime.GOOS == "linux" {
		if path, err := exec.LookPath("chrome-headless-shell"); err == nil {
			out = append(out, launchCandidate{name: "bundled", path: path, ok: true})
		}
	}
	if override := os.Getenv("CHROME_EXECUTABLE_PATH"); override != "" {
		out = append(out, launchCandidate{name: "override", path: override, ok: true})
	} else if paths, ok := localBrowserPaths[runtime.GOOS]; ok {
		for _, path := range paths {
			if _, err := os.Stat(path); err == nil {
				out = append(out, launchCandidate{name: "local", path: path, ok: true})
				break
			}
		}
	}
	if !p.production {
		out = append(out, launchCandidate{name: "channel", ok: true})
	}
	return out
}

// ensureLaunched lazily launches the shared browser on first use.
func (p *Pool) ensureLaunched(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browserCtx != nil {
		return nil
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if proxy := p.resolveProxy(); proxy != "" {
		opts = append(opts, chromedp.ProxyServer(proxy))
	}

	var lastErr error
	for _, c := range p.candidates() {
		if c.path != "" {
			opts = append(opts, chromedp.ExecPath(c.path))
		}
		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)
		if err := chromedp.Run(browserCtx); err != nil {
			p.logger.Warn("browser launch candidate failed", zap.String("candidate", c.name), zap.Error(err))
			browserCancel()
			allocCancel()
			lastErr = err
			continue
		}
		p.allocCancel = allocCancel
		p.browserCtx = browserCtx
		p.browserCancel = browserCancel
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("no launch candidates available")
	}
	return fmt.Errorf("%w: %v", ErrLaunchFailed, lastErr)
}

// Acquire implements Driver. It lazily launches the browser, then mints a
// fresh tab context with randomized UA/viewport and the bundle's cookies
// installed.
func (p *Pool) Acquire(ctx context.Context, bundle *model.CredentialBundle) (Page, error) {
	ctx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	if err := p.ensureLaunched(ctx); err != nil {
		return nil, err
	}

	if err := p.limiterFor(credentialIdentity(bundle)).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	p.mu.Lock()
	browserCtx := p.browserCtx
	p.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	ua := desktopUserAgents[rand.IntN(len(desktopUserAgents))]
	width := viewportWidthBase + rand.IntN(viewportWidthJitter+1)
	height := viewportHeightBase + rand.IntN(viewportHeightJitter+1)

	page := &chromedpPage{ctx: tabCtx, cancel: tabCancel, logger: p.logger}
	if err := page.init(ctx, ua, width, height, bundle); err != nil {
		page.Close(ctx) //nolint:errcheck
		return nil, fmt.Errorf("init page context: %w", err)
	}
	return page, nil
}

// Close tears down the shared browser. The pool relaunches lazily on the
// next Acquire.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browserCtx == nil {
		return nil
	}
	p.browserCancel()
	p.allocCancel()
	p.browserCtx = nil
	p.browserCancel = nil
	p.allocCancel = nil
	select {
	case <-ctx.Done():
	default:
	}
	return nil
}
