package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replythread/harvester/internal/model"
)

func TestIsLaunchFailureMatchesWrappedError(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("candidate chain exhausted: %w", ErrLaunchFailed)
	require.True(t, IsLaunchFailure(wrapped))
	require.False(t, IsLaunchFailure(errors.New("some other error")))
}

func TestResolveProxyPrefersExplicitURL(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "http://env-proxy.local")

	p := &Pool{proxyURL: "http://explicit.local"}
	require.Equal(t, "http://explicit.local", p.resolveProxy())
}

func TestResolveProxyFallsBackToEnv(t *testing.T) {
	os.Unsetenv("PROXY_URL")
	t.Setenv("HTTPS_PROXY", "http://env-proxy.local")

	p := &Pool{}
	require.Equal(t, "http://env-proxy.local", p.resolveProxy())
}

func TestResolveProxyEmptyWhenNoneConfigured(t *testing.T) {
	for _, v := range []string{"HTTPS_PROXY", "https_proxy", "ALL_PROXY", "all_proxy", "HTTP_PROXY", "http_proxy"} {
		os.Unsetenv(v)
	}
	p := &Pool{}
	require.Equal(t, "", p.resolveProxy())
}

func TestCandidatesNonProductionIncludesNamedChannel(t *testing.T) {
	os.Unsetenv("CHROME_EXECUTABLE_PATH")

	p := &Pool{production: false}
	cands := p.candidates()
	require.NotEmpty(t, cands)
	require.Equal(t, "channel", cands[len(cands)-1].name)
}

func TestCandidatesOverridePathTakesPriorityOverLocalProbe(t *testing.T) {
	t.Setenv("CHROME_EXECUTABLE_PATH", "/custom/chrome")

	p := &Pool{production: false}
	cands := p.candidates()
	require.Equal(t, "override", cands[0].name)
	require.Equal(t, "/custom/chrome", cands[0].path)
}

func TestSetProxyClosesBrowserOnlyWhenProxyChanges(t *testing.T) {
	t.Parallel()

	p := NewPool(false, nil)
	p.SetProxy(context.Background(), "http://first.local")
	require.Equal(t, "http://first.local", p.proxyURL)

	// Same value again: no-op, browserCtx stays nil either way since it was
	// never launched, so this only exercises the "changed" branch logic.
	p.SetProxy(context.Background(), "http://first.local")
	require.Equal(t, "http://first.local", p.proxyURL)

	p.SetProxy(context.Background(), "http://second.local")
	require.Equal(t, "http://second.local", p.proxyURL)
}

func TestCredentialIdentityFallsBackToAnonymous(t *testing.T) {
	t.Parallel()

	require.Equal(t, "anonymous", credentialIdentity(nil))
	require.Equal(t, "anonymous", credentialIdentity(&model.CredentialBundle{}))
	require.Equal(t, "tok-123", credentialIdentity(&model.CredentialBundle{
		Cookies: []model.Cookie{{Name: "ct0", Value: "x"}, {Name: "auth_token", Value: "tok-123"}},
	}))
}

func TestLimiterForReturnsSameLimiterForSameIdentity(t *testing.T) {
	t.Parallel()

	p := NewPool(false, nil)
	a := p.limiterFor("same")
	b := p.limiterFor("same")
	require.Same(t, a, b)

	c := p.limiterFor("other")
	require.NotSame(t, a, c)
}
