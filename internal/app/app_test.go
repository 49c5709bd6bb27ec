package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	harvesterconfig "github.com/replythread/harvester/internal/config"
	"github.com/replythread/harvester/internal/credential"
	"github.com/replythread/harvester/internal/enumerator"
	"github.com/replythread/harvester/internal/persistence"
)

func testConfig() harvesterconfig.Config {
	return harvesterconfig.Config{
		HTTPAddr:        ":0",
		LogDevelopment:  true,
		DefaultMaxPosts: 5,
	}
}

func TestNewBuildsAllServicesWithMemoryStoreWhenDSNEmpty(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig())
	require.NoError(t, err)
	require.NotNil(t, a.GetOrchestrator())
	require.NotNil(t, a.GetProgress())
	require.NotNil(t, a.GetRotator())
	require.Equal(t, 0, a.GetRotator().Count(), "no credentials configured, ring starts empty")

	a.Close(context.Background())
}

func TestNewAppliesAlreadyConfiguredProxyURLAtStartup(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	store := persistence.NewMemoryStore()
	require.NoError(t, store.SetConfig(context.Background(), persistence.KeyProxyURL, "socks5://seed-proxy:1080", ""))
	a, err := newWithStore(context.Background(), cfg, store)
	require.NoError(t, err)
	defer a.Close(context.Background())

	require.Equal(t, "socks5://seed-proxy:1080", a.GetPool().ProxyURL())
}

func TestSetConfigProxyURLAfterStartupReachesPool(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig())
	require.NoError(t, err)
	defer a.Close(context.Background())

	require.NoError(t, a.store.SetConfig(context.Background(), persistence.KeyProxyURL, "socks5://live-proxy:1080", ""))
	require.Equal(t, "socks5://live-proxy:1080", a.GetPool().ProxyURL())
}

func TestDefaultBudgetsSelectsDevOrProd(t *testing.T) {
	t.Parallel()

	require.Equal(t, enumerator.DevBudgets(), defaultBudgets(false))
	require.Equal(t, enumerator.ProdBudgets(), defaultBudgets(true))
}

func TestNewStoreReturnsMemoryStoreWhenDSNEmpty(t *testing.T) {
	t.Parallel()

	store, err := newStore(context.Background(), testConfig())
	require.NoError(t, err)
	_, ok := store.(interface{ Close() error })
	require.False(t, ok, "MemoryStore exposes no Close method")
}

func TestLoadCredentialsPrefersListOverSingle(t *testing.T) {
	t.Parallel()

	store, err := newStore(context.Background(), testConfig())
	require.NoError(t, err)
	require.NoError(t, store.SetConfig(context.Background(), "X_COOKIES_LIST", `[{"cookies":[{"name":"auth_token","value":"a"}]},{"cookies":[{"name":"auth_token","value":"b"}]}]`, ""))
	require.NoError(t, store.SetConfig(context.Background(), "X_COOKIES", `{"cookies":[{"name":"auth_token","value":"ignored"}]}`, ""))

	rotator := credential.New()
	require.NoError(t, loadCredentials(context.Background(), store, rotator))
	require.Equal(t, 2, rotator.Count())
}
