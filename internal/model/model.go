// Package model defines the core record types shared across the harvester.
package model

import "time"

// RootPost is the top-level conversation post whose replies are harvested.
type RootPost struct {
	ID          string    `json:"id"`
	AuthorName  string    `json:"author_name"`
	AuthorHandle string   `json:"author_handle"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
	LikeCount   int64     `json:"like_count"`
	ReplyCount  int64     `json:"reply_count"`
	RepostCount int64     `json:"repost_count"`
	// FetchedAt is refreshed on every upsert observation; unlike CreatedAt it
	// is not preserved across re-insertion.
	FetchedAt time.Time `json:"fetched_at"`
}

// Reply is any post whose ancestor chain leads to a RootPost.
type Reply struct {
	ID           string    `json:"id"`
	RootID       string    `json:"root_id"`
	AuthorID     string    `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	AuthorHandle string    `json:"author_handle"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	LikeCount    int64     `json:"like_count"`
	// ReplyTo is the nearest ancestor id within the conversation; falls back
	// to RootID when the immediate parent cannot be determined.
	ReplyTo  string    `json:"reply_to"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Stage is a tagged state of a ScrapeProgress record.
type Stage string

// Supported progress stages.
const (
	StageInit            Stage = "init"
	StageLoading         Stage = "loading"
	StageFetchingPosts   Stage = "fetching_posts"
	StageFetchingReplies Stage = "fetching_replies"
	StageComplete        Stage = "complete"
	StageError           Stage = "error"
)

// ScrapeProgress is the live progress record for one harvest target.
type ScrapeProgress struct {
	Stage             Stage     `json:"stage"`
	PostsFound        int       `json:"posts_found"`
	RepliesFound      int       `json:"replies_found"`
	CurrentPost       int       `json:"current_post"`
	TotalPosts        int       `json:"total_posts"`
	CurrentCredential int       `json:"current_credential"`
	TotalCredentials  int       `json:"total_credentials"`
	Message           string    `json:"message"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CredentialBundle is an ordered set of cookies authenticating one operator
// account against the platform.
type CredentialBundle struct {
	Cookies []Cookie `json:"cookies"`
}

// Cookie is a single browser cookie triple. Domain defaults to the platform
// host and Path defaults to "/" when empty.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// HasAuthToken reports whether the bundle carries the platform's primary
// session cookie. Login walls are detected from page text
// (dom.DetectReplyLoginWall), not from this check.
func (b CredentialBundle) HasAuthToken() bool {
	for _, c := range b.Cookies {
		if c.Name == "auth_token" && c.Value != "" {
			return true
		}
	}
	return false
}

// PacingPreset names one of the four delay tuples the Pacing Policy offers.
type PacingPreset string

// Supported pacing presets.
const (
	PacingUltraSlow PacingPreset = "ultraSlow"
	PacingSlow      PacingPreset = "slow"
	PacingNormal    PacingPreset = "normal"
	PacingFast      PacingPreset = "fast"
)

// PacingConfig captures the delay knobs applied between browser actions.
type PacingConfig struct {
	PageLoadDelayMs    int
	ScrollDelayMs      int
	BetweenPostsDelayMs int
	RandomJitter       bool
	JitterMinMs        int
	JitterMaxMs        int
}

// SortMode selects the reply ordering requested from the platform.
type SortMode string

// Supported sort modes.
const (
	SortRecent SortMode = "recent"
	SortTop    SortMode = "top"
)

// ReplyScrapeOptions configures one reply-enumeration run.
type ReplyScrapeOptions struct {
	SortMode            SortMode
	ExpandFoldedReplies bool
}

// HarvestMethod selects which branch the Orchestrator attempts.
type HarvestMethod string

// Supported harvest methods. "puppeteer" is accepted as a legacy alias for
// "browser".
const (
	MethodBrowser HarvestMethod = "browser"
	MethodAPI     HarvestMethod = "api"
	MethodAuto    HarvestMethod = "auto"
)

// NormalizeMethod maps legacy aliases onto the canonical method names.
func NormalizeMethod(m string) HarvestMethod {
	switch m {
	case "puppeteer":
		return MethodBrowser
	case "", string(MethodAuto):
		return MethodAuto
	case string(MethodBrowser):
		return MethodBrowser
	case string(MethodAPI):
		return MethodAPI
	default:
		return MethodAuto
	}
}

// HarvestResult is returned by the Orchestrator's entry points.
type HarvestResult struct {
	RunID        string        `json:"run_id"`
	Success      bool          `json:"success"`
	Method       HarvestMethod `json:"method"`
	Error        string        `json:"error,omitempty"`
	PostsFound   int           `json:"posts_found"`
	RepliesFound int           `json:"replies_found"`
}

// AccountTargetKey builds the Progress Channel key for an account-handle harvest.
func AccountTargetKey(handle string) string {
	return "account:" + handle
}

// TweetTargetKey builds the Progress Channel key for a single-post harvest.
func TweetTargetKey(rootID string) string {
	return "tweet:" + rootID
}
