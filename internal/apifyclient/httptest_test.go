package apifyclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replythread/harvester/internal/model"
)

// TestFetchRepliesSucceedsWhenRunCompletesSynchronously drives the full
// submit-run -> fetch-dataset path against a stub Apify server whose run
// response already reports SUCCEEDED, so pollUntilDone is never entered.
func TestFetchRepliesSucceedsWhenRunCompletesSynchronously(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/acts/reply-actor/runs", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"id":               "run-1",
				"defaultDatasetId": "dataset-1",
				"status":           "SUCCEEDED",
			},
		})
	})
	mux.HandleFunc("/v2/datasets/dataset-1/items", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "100", "conversationId": "100", "authorHandle": "root-author", "text": "root text"},
			{"id": "200", "conversationId": "100", "authorHandle": "replier", "text": "reply text"},
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := New("tok", "reply-actor", "timeline-actor", nil, WithBaseURL(server.URL+"/v2"))

	var gotRoot model.RootPost
	var gotReplies []model.Reply
	err := client.FetchReplies(context.Background(), "100", model.ReplyScrapeOptions{}, 100,
		func(r model.RootPost) error { gotRoot = r; return nil },
		func(r model.Reply) error { gotReplies = append(gotReplies, r); return nil },
		nil,
	)

	require.NoError(t, err)
	require.Equal(t, "root-author", gotRoot.AuthorHandle)
	require.Len(t, gotReplies, 1)
	require.Equal(t, "replier", gotReplies[0].AuthorHandle)
}

// TestFetchTimelineRetriesTransientServerErrorThenSucceeds exercises the
// retry wrapper: the first submit-run call returns a 500, the second
// succeeds, and the client should transparently retry rather than fail.
func TestFetchTimelineRetriesTransientServerErrorThenSucceeds(t *testing.T) {
	t.Parallel()

	var runAttempts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/acts/timeline-actor/runs", func(w http.ResponseWriter, r *http.Request) {
		if runAttempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("temporarily unavailable"))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"id":               "run-2",
				"defaultDatasetId": "dataset-2",
				"status":           "SUCCEEDED",
			},
		})
	})
	mux.HandleFunc("/v2/datasets/dataset-2/items", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "500"},
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := New("tok", "reply-actor", "timeline-actor", nil, WithBaseURL(server.URL+"/v2"))

	ids, err := client.FetchTimeline(context.Background(), "handle", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"500"}, ids)
	require.Equal(t, int32(2), runAttempts.Load())
}

// TestSubmitRunSurfacesQuotaExceededWithoutRetrying confirms the quota
// marker short-circuits the retry loop: it is a terminal, user-facing
// error, not a transient one.
func TestSubmitRunSurfacesQuotaExceededWithoutRetrying(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/acts/reply-actor/runs", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(quotaExceededMarker))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := New("tok", "reply-actor", "timeline-actor", nil, WithBaseURL(server.URL+"/v2"))

	_, _, err := client.submitRun(context.Background(), "reply-actor", map[string]any{})
	require.ErrorIs(t, err, ErrQuotaExceeded)
	require.Equal(t, int32(1), attempts.Load())
}

// TestSubmitRunGivesUpAfterMaxAttempts confirms a persistently failing
// server exhausts the retry budget instead of retrying forever.
func TestSubmitRunGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/acts/reply-actor/runs", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := New("tok", "reply-actor", "timeline-actor", nil, WithBaseURL(server.URL+"/v2"))

	_, _, err := client.submitRun(context.Background(), "reply-actor", map[string]any{})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "status=502"))
	require.Equal(t, int32(3), attempts.Load())
}
