package apifyclient

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replythread/harvester/internal/model"
)

func TestSortParam(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Top", sortParam(model.SortTop))
	require.Equal(t, "Latest", sortParam(model.SortRecent))
	require.Equal(t, "Latest", sortParam(model.SortMode("")))
}

func TestDatasetItemFieldStringTriesCamelThenSnake(t *testing.T) {
	t.Parallel()

	camel := datasetItem{"authorHandle": "alice"}
	require.Equal(t, "alice", camel.fieldString("authorHandle"))

	snake := datasetItem{"author_handle": "bob"}
	require.Equal(t, "bob", snake.fieldString("authorHandle"))

	require.Equal(t, "", datasetItem{}.fieldString("authorHandle"))
}

func TestDatasetItemFieldIntParsesNumericStringsAndFloats(t *testing.T) {
	t.Parallel()

	it := datasetItem{"likeCount": float64(42)}
	require.Equal(t, int64(42), it.fieldInt("likeCount"))

	it2 := datasetItem{"like_count": "7"}
	require.Equal(t, int64(7), it2.fieldInt("likeCount"))

	require.Equal(t, int64(0), datasetItem{}.fieldInt("likeCount"))
}

func TestToSnake(t *testing.T) {
	t.Parallel()

	require.Equal(t, "author_handle", toSnake("authorHandle"))
	require.Equal(t, "id", toSnake("id"))
}

func TestToRootPostFillsUnknownAuthorWhenAbsent(t *testing.T) {
	t.Parallel()

	it := datasetItem{"text": "hello"}
	post := it.toRootPost("100")
	require.Equal(t, "100", post.ID)
	require.Equal(t, "Unknown", post.AuthorName)
	require.Equal(t, "unknown", post.AuthorHandle)
	require.Equal(t, "hello", post.Text)
}

func TestEmitReplyItemsFiltersByConversationMembershipAndSynthesizesRoot(t *testing.T) {
	t.Parallel()

	client := New("token", "reply-actor", "timeline-actor", nil)

	items := []datasetItem{
		{"id": "200", "conversationId": "100", "text": "in thread"},
		{"id": "300", "conversationId": "999", "text": "unrelated thread"},
		{"id": "400", "inReplyToStatusId": "100", "text": "also in thread"},
	}

	var gotRoot model.RootPost
	var gotReplies []model.Reply
	err := client.emitReplyItems(items, "100", func(r model.RootPost) error {
		gotRoot = r
		return nil
	}, func(r model.Reply) error {
		gotReplies = append(gotReplies, r)
		return nil
	}, nil)

	require.NoError(t, err)
	require.Equal(t, "100", gotRoot.ID)
	require.Equal(t, "Unknown", gotRoot.AuthorName, "root was never in the dataset, so it is synthesized")
	require.Len(t, gotReplies, 2)
	for _, r := range gotReplies {
		require.Equal(t, "100", r.RootID)
	}
}

func TestEmitReplyItemsUsesExplicitRootRecordWhenPresent(t *testing.T) {
	t.Parallel()

	client := New("token", "reply-actor", "timeline-actor", nil)
	items := []datasetItem{
		{"id": "100", "authorHandle": "root-author", "text": "the root post"},
		{"id": "200", "conversationId": "100", "text": "a reply"},
	}

	var gotRoot model.RootPost
	err := client.emitReplyItems(items, "100", func(r model.RootPost) error {
		gotRoot = r
		return nil
	}, func(model.Reply) error { return nil }, nil)

	require.NoError(t, err)
	require.Equal(t, "root-author", gotRoot.AuthorHandle)
}

func TestEmitReplyItemsReportsProgressEveryInterval(t *testing.T) {
	t.Parallel()

	client := New("token", "reply-actor", "timeline-actor", nil)
	items := make([]datasetItem, 0, progressEvery+3)
	for i := 0; i < progressEvery+3; i++ {
		items = append(items, datasetItem{
			"id":             strconv.Itoa(i + 1),
			"conversationId": "100",
		})
	}

	var progressCalls []int
	err := client.emitReplyItems(items, "100", func(model.RootPost) error { return nil }, func(model.Reply) error { return nil }, func(persisted int) {
		progressCalls = append(progressCalls, persisted)
	})

	require.NoError(t, err)
	require.Equal(t, []int{progressEvery, progressEvery + 3}, progressCalls)
}
