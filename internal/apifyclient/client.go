// Package apifyclient implements the Fallback API Client: the driver for
// the third-party scraping actor used when the browser path fails or is
// disabled, grounded on the teacher's retry/backoff idiom generalized from
// page-fetch retries to run submission/poll/fetch retries.
package apifyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/replythread/harvester/internal/logging"
	"github.com/replythread/harvester/internal/model"
)

const (
	defaultBaseURL  = "https://api.apify.com/v2"
	pollInterval    = 3 * time.Second
	maxPollAttempts = 80
	progressEvery   = 20
)

// ErrQuotaExceeded is a distinct, user-facing error the Orchestrator does
// not retry.
var ErrQuotaExceeded = errors.New("apify monthly usage hard limit exceeded")

// ErrRunFailed is returned when a run terminates in any non-SUCCEEDED
// status.
var ErrRunFailed = errors.New("apify run did not succeed")

const quotaExceededMarker = "Monthly usage hard limit exceeded"

// Client drives the Apify actor-run lifecycle: submit, poll, fetch.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	token         string
	replyActor    string
	timelineActor string
	logger        *zap.Logger
	retry         *retryPolicy
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client (e.g. to apply a proxy
// transport).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithBaseURL overrides the Apify API origin, for pointing at a private
// gateway or a test double.
func WithBaseURL(u string) Option {
	return func(cl *Client) { cl.baseURL = u }
}

// New constructs a Client for the given API token and actor ids.
func New(token, replyActor, timelineActor string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient:    http.DefaultClient,
		baseURL:       defaultBaseURL,
		token:         token,
		replyActor:    replyActor,
		timelineActor: timelineActor,
		logger:        logging.NopOrDefault(logger),
		retry:         newRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sortParam maps the core's SortMode onto the actor's expected labels.
func sortParam(mode model.SortMode) string {
	if mode == model.SortTop {
		return "Top"
	}
	return "Latest"
}

// OnRootPost receives the root record, OnReply every reply in the order
// fetched from the dataset, and OnProgress the running count of replies
// handed to OnReply.
type OnRootPost func(model.RootPost) error
type OnReply func(model.Reply) error
type OnProgress func(repliesPersisted int)

// FetchReplies drives the reply-actor contract for a known root id: submit,
// poll, fetch, classify, and stream root+replies to the callbacks.
func (c *Client) FetchReplies(ctx context.Context, rootID string, opts model.ReplyScrapeOptions, maxReplies int, onRoot OnRootPost, onReply OnReply, onProgress OnProgress) error {
	runID, datasetID, err := c.submitRun(ctx, c.replyActor, map[string]any{
		"searchTerms": []string{"conversation_id:" + rootID},
		"sort":        sortParam(opts.SortMode),
		"maxItems":    maxReplies + 1,
	})
	if err != nil {
		return err
	}
	if datasetID == "" {
		datasetID, err = c.pollUntilDone(ctx, runID)
		if err != nil {
			return err
		}
	}

	items, err := c.fetchDataset(ctx, datasetID)
	if err != nil {
		return err
	}

	return c.emitReplyItems(items, rootID, onRoot, onReply, onProgress)
}

// FetchTimeline drives the user-timeline contract: one run using
// from:<handle>, fanning out to FetchReplies per discovered root id is the
// caller's responsibility (the orchestrator), since each root needs its own
// reply dataset.
func (c *Client) FetchTimeline(ctx context.Context, handle string, maxPosts int) ([]string, error) {
	runID, datasetID, err := c.submitRun(ctx, c.timelineActor, map[string]any{
		"searchTerms": []string{"from:" + handle},
		"sort":        "Latest",
		"maxItems":    maxPosts,
	})
	if err != nil {
		return nil, err
	}
	if datasetID == "" {
		datasetID, err = c.pollUntilDone(ctx, runID)
		if err != nil {
			return nil, err
		}
	}
	items, err := c.fetchDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if id := it.fieldString("id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (c *Client) submitRun(ctx context.Context, actor string, body map[string]any) (runID, datasetID string, err error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", "", fmt.Errorf("marshal run input: %w", err)
	}
	u := fmt.Sprintf("%s/acts/%s/runs?token=%s", c.baseURL, url.PathEscape(actor), url.QueryEscape(c.token))

	var parsed struct {
		Data struct {
			ID               string `json:"id"`
			DefaultDatasetID string `json:"defaultDatasetId"`
			Status           string `json:"status"`
		} `json:"data"`
	}
	err = withRetry(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build run request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("submit run: %w", err)
		}
		defer resp.Body.Close()

		data, err := readAndCheckQuota(resp)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("parse run response: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}
	if parsed.Data.Status == "SUCCEEDED" {
		return parsed.Data.ID, parsed.Data.DefaultDatasetID, nil
	}
	return parsed.Data.ID, "", nil
}

func (c *Client) pollUntilDone(ctx context.Context, runID string) (datasetID string, err error) {
	u := fmt.Sprintf("%s/actor-runs/%s?token=%s", c.baseURL, url.PathEscape(runID), url.QueryEscape(c.token))

	for attempt := 0; attempt < maxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}

		var parsed struct {
			Data struct {
				Status           string `json:"status"`
				DefaultDatasetID string `json:"defaultDatasetId"`
			} `json:"data"`
		}
		err := withRetry(ctx, c.retry, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return fmt.Errorf("build poll request: %w", err)
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("poll run: %w", err)
			}
			defer resp.Body.Close()
			data, err := readAndCheckQuota(resp)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, &parsed); err != nil {
				return fmt.Errorf("parse poll response: %w", err)
			}
			return nil
		})
		if err != nil {
			return "", err
		}
		if parsed.Data.Status == "RUNNING" || parsed.Data.Status == "" {
			continue
		}
		if parsed.Data.Status != "SUCCEEDED" {
			return "", fmt.Errorf("%w: status=%s", ErrRunFailed, parsed.Data.Status)
		}
		return parsed.Data.DefaultDatasetID, nil
	}
	return "", fmt.Errorf("%w: exceeded %d poll attempts", ErrRunFailed, maxPollAttempts)
}

func (c *Client) fetchDataset(ctx context.Context, datasetID string) ([]datasetItem, error) {
	u := fmt.Sprintf("%s/datasets/%s/items?token=%s", c.baseURL, url.PathEscape(datasetID), url.QueryEscape(c.token))

	var raw []map[string]any
	err := withRetry(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("build dataset request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("fetch dataset: %w", err)
		}
		defer resp.Body.Close()
		data, err := readAndCheckQuota(resp)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parse dataset items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	items := make([]datasetItem, 0, len(raw))
	for _, r := range raw {
		items = append(items, datasetItem(r))
	}
	return items, nil
}

func readAndCheckQuota(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if bytes.Contains(data, []byte(quotaExceededMarker)) {
		return nil, ErrQuotaExceeded
	}
	if resp.StatusCode >= 400 {
		return nil, &httpStatusError{statusCode: resp.StatusCode, body: string(data)}
	}
	return data, nil
}

// emitReplyItems filters dataset items by conversation membership, builds
// the root record (or synthesizes an empty one if absent), and streams
// replies in fetch order.
func (c *Client) emitReplyItems(items []datasetItem, rootID string, onRoot OnRootPost, onReply OnReply, onProgress OnProgress) error {
	var root model.RootPost
	haveRoot := false
	var replies []model.Reply

	for _, it := range items {
		id := it.fieldString("id")
		if id == "" {
			continue
		}
		conversationID := it.fieldString("conversationId")
		inReplyTo := it.fieldString("inReplyToStatusId")
		belongsToConversation := conversationID == rootID || inReplyTo == rootID || id == rootID
		if !belongsToConversation {
			continue
		}

		if id == rootID {
			root = it.toRootPost(id)
			haveRoot = true
			continue
		}

		replyTo := inReplyTo
		if replyTo == "" {
			replyTo = rootID
		}
		replies = append(replies, it.toReply(id, rootID, replyTo))
	}

	if !haveRoot {
		root = model.RootPost{ID: rootID, AuthorName: "Unknown", AuthorHandle: "unknown"}
	}
	if onRoot != nil {
		if err := onRoot(root); err != nil {
			c.logger.Warn("onRootPost callback failed", zap.Error(err))
		}
	}

	persisted := 0
	for _, r := range replies {
		if onReply != nil {
			if err := onReply(r); err != nil {
				c.logger.Warn("onReply callback failed", zap.Error(err))
			}
		}
		persisted++
		if onProgress != nil && persisted%progressEvery == 0 {
			onProgress(persisted)
		}
	}
	if onProgress != nil && persisted%progressEvery != 0 {
		onProgress(persisted)
	}
	return nil
}

// datasetItem is a tolerant view over one Apify dataset record: fields may
// appear in either snake_case or camelCase, or be entirely absent.
type datasetItem map[string]any

func (it datasetItem) fieldString(camel string) string {
	if v, ok := it[camel]; ok {
		return stringify(v)
	}
	if v, ok := it[toSnake(camel)]; ok {
		return stringify(v)
	}
	return ""
}

func (it datasetItem) fieldInt(camel string) int64 {
	s := it.fieldString(camel)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (it datasetItem) toRootPost(id string) model.RootPost {
	name := it.fieldString("authorName")
	if name == "" {
		name = "Unknown"
	}
	handle := it.fieldString("authorHandle")
	if handle == "" {
		handle = "unknown"
	}
	return model.RootPost{
		ID:           id,
		AuthorName:   name,
		AuthorHandle: handle,
		Text:         it.fieldString("text"),
		LikeCount:    it.fieldInt("likeCount"),
		ReplyCount:   it.fieldInt("replyCount"),
		RepostCount:  it.fieldInt("retweetCount"),
	}
}

func (it datasetItem) toReply(id, rootID, replyTo string) model.Reply {
	name := it.fieldString("authorName")
	if name == "" {
		name = "Unknown"
	}
	handle := it.fieldString("authorHandle")
	if handle == "" {
		handle = "unknown"
	}
	return model.Reply{
		ID:           id,
		RootID:       rootID,
		AuthorName:   name,
		AuthorHandle: handle,
		Text:         it.fieldString("text"),
		LikeCount:    it.fieldInt("likeCount"),
		ReplyTo:      replyTo,
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// toSnake converts a camelCase field name to snake_case for the alternate
// lookup the tolerant parser tries.
func toSnake(camel string) string {
	var out []byte
	for i := 0; i < len(camel); i++ {
		ch := camel[i]
		if ch >= 'A' && ch <= 'Z' {
			out = append(out, '_', ch+('a'-'A'))
		} else {
			out = append(out, ch)
		}
	}
	return string(out)
}
