package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeMethod(t *testing.T) {
	t.Parallel()

	cases := map[string]HarvestMethod{
		"":          MethodAuto,
		"auto":      MethodAuto,
		"browser":   MethodBrowser,
		"api":       MethodAPI,
		"puppeteer": MethodBrowser,
		"bogus":     MethodAuto,
	}
	for input, want := range cases {
		require.Equal(t, want, NormalizeMethod(input), "input %q", input)
	}
}

func TestTargetKeysAreNamespacedAndDistinct(t *testing.T) {
	t.Parallel()

	require.Equal(t, "account:alice", AccountTargetKey("alice"))
	require.Equal(t, "tweet:123", TweetTargetKey("123"))
	require.NotEqual(t, AccountTargetKey("123"), TweetTargetKey("123"))
}

func TestCredentialBundleHasAuthToken(t *testing.T) {
	t.Parallel()

	withToken := CredentialBundle{Cookies: []Cookie{{Name: "auth_token", Value: "xyz"}}}
	require.True(t, withToken.HasAuthToken())

	empty := CredentialBundle{Cookies: []Cookie{{Name: "auth_token", Value: ""}}}
	require.False(t, empty.HasAuthToken())

	noCookie := CredentialBundle{}
	require.False(t, noCookie.HasAuthToken())
}
