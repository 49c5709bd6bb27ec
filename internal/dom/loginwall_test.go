package dom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectReplyLoginWallRequiresTeaserAndPrompt(t *testing.T) {
	t.Parallel()

	require.True(t, DetectReplyLoginWall("View 12 replies\nLog in", 1))
	require.False(t, DetectReplyLoginWall("View 12 replies\nLog in", 3), "too many cards to be a wall")
	require.False(t, DetectReplyLoginWall("just some text", 1), "no teaser or prompt")
	require.False(t, DetectReplyLoginWall("Log in", 1), "prompt without teaser")
}

func TestDetectReplyLoginWallSupportsChineseLocale(t *testing.T) {
	t.Parallel()

	require.True(t, DetectReplyLoginWall("查看 12 条回复\n登录", 0))
}

func TestDetectRootUnavailable(t *testing.T) {
	t.Parallel()

	require.True(t, DetectRootUnavailable("This post was deleted by the author."))
	require.True(t, DetectRootUnavailable("Hmm, this page doesn't exist"))
	require.False(t, DetectRootUnavailable("totally normal post content"))
}
