package dom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func cardHTML(id, authorLine, text string) string {
	return `<article data-testid="tweet">
		<a href="/someone/status/` + id + `"><time datetime="2024-03-05T12:00:00Z">5m</time></a>
		<div data-testid="User-Name">` + authorLine + `</div>
		<div data-testid="tweetText">` + text + `</div>
		<div data-testid="like">3</div>
		<div data-testid="reply">1</div>
		<div data-testid="retweet">2</div>
	</article>`
}

func TestExtractIDFromPostCardPrefersTimeAnchor(t *testing.T) {
	t.Parallel()

	html := `<article>
		<a href="/alice/status/111">profile</a>
		<a href="/alice/status/222"><time datetime="2024-01-01T00:00:00Z">now</time></a>
	</article>`

	id, ok := ExtractIDFromPostCard(html, "999")
	require.True(t, ok)
	require.Equal(t, "222", id)
}

func TestExtractIDFromPostCardSkipsRepeatedRoot(t *testing.T) {
	t.Parallel()

	html := `<article>
		<a href="/alice/status/100"><time datetime="2024-01-01T00:00:00Z">now</time></a>
		<a href="/bob/status/200">reply</a>
	</article>`

	id, ok := ExtractIDFromPostCard(html, "100")
	require.True(t, ok)
	require.Equal(t, "200", id)
}

func TestExtractIDFromPostCardNoAnchorsFails(t *testing.T) {
	t.Parallel()

	_, ok := ExtractIDFromPostCard(`<article><p>no links</p></article>`, "100")
	require.False(t, ok)
}

func TestExtractRootPostParsesFieldsAndCreatedAt(t *testing.T) {
	t.Parallel()

	html := cardHTML("222", "Alice Smith@alice", "hello world")
	post, ok := ExtractRootPost(html, "222")
	require.True(t, ok)
	require.Equal(t, "222", post.ID)
	require.Equal(t, "Alice Smith", post.AuthorName)
	require.Equal(t, "alice", post.AuthorHandle)
	require.Equal(t, "hello world", post.Text)
	require.Equal(t, int64(3), post.LikeCount)
	require.Equal(t, int64(1), post.ReplyCount)
	require.Equal(t, int64(2), post.RepostCount)
	require.False(t, post.CreatedAt.IsZero())
	require.Equal(t, 2024, post.CreatedAt.Year())
}

func TestExtractReplyCarriesRootIDAndReplyTo(t *testing.T) {
	t.Parallel()

	html := cardHTML("333", "Bob Jones@bob", "a reply")
	reply, ok := ExtractReply(html, "333", "222", "222")
	require.True(t, ok)
	require.Equal(t, "333", reply.ID)
	require.Equal(t, "222", reply.RootID)
	require.Equal(t, "222", reply.ReplyTo)
	require.Equal(t, "bob", reply.AuthorHandle)
}

func TestExtractCommonMissingTimeYieldsZeroCreatedAt(t *testing.T) {
	t.Parallel()

	html := `<article>
		<div data-testid="User-Name">No Time@notime</div>
		<div data-testid="tweetText">no timestamp here</div>
	</article>`
	post, ok := ExtractRootPost(html, "1")
	require.True(t, ok)
	require.True(t, post.CreatedAt.IsZero())
}

func TestBodyTextFallsBackToCardTitleForLinkPosts(t *testing.T) {
	t.Parallel()

	html := `<article>
		<div data-testid="User-Name">Carl C@carl</div>
		<div data-testid="card.wrapper">
			<div data-testid="card.layoutLarge.detail">Some very long external article headline that keeps going well past fifty characters for sure</div>
		</div>
	</article>`
	post, ok := ExtractRootPost(html, "1")
	require.True(t, ok)
	require.Contains(t, post.Text, "[链接]")
}

func TestMediaTagsAppendPhotoAndVideoMarkers(t *testing.T) {
	t.Parallel()

	html := `<article>
		<div data-testid="User-Name">Dana D@dana</div>
		<div data-testid="tweetText">look at this</div>
		<div data-testid="tweetPhoto"></div>
		<video></video>
	</article>`
	post, ok := ExtractRootPost(html, "1")
	require.True(t, ok)
	require.Contains(t, post.Text, "[图片]")
	require.Contains(t, post.Text, "[视频]")
}

func TestParseCount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want int64
	}{
		{"", 0},
		{"0", 0},
		{"42", 42},
		{"1.2K", 1200},
		{"3,400", 3400},
		{"7M", 7_000_000},
		{"not a number", 0},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ParseCount(tc.raw), "input %q", tc.raw)
	}
}
