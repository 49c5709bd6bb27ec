// Package dom implements the DOM Extractor: pure functions over already-
// captured HTML fragments and body text, grounded on the teacher's
// goquery-based HeuristicDetector. Nothing in this package touches a live
// page; the browser.Page interface owns everything that genuinely requires
// live layout (Y coordinates, click/scroll actions).
package dom

import (
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/replythread/harvester/internal/model"
)

// statusIDPattern matches a permalink path segment of the form
// "/<handle>/status/<id>".
var statusIDPattern = `/status/`

// ExtractIDFromPostCard scans the card's anchors for a "/status/<id>" href
// and returns the id. It prefers the anchor that wraps a <time> element (the
// canonical permalink anchor); if that anchor's id equals rootID and another
// id is present, the non-root id is preferred, tolerating the root being
// repeated inside its own conversation.
func ExtractIDFromPostCard(cardHTML string, rootID string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cardHTML))
	if err != nil {
		return "", false
	}

	var timeAnchorID string
	var otherID string

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		id, ok := idFromHref(href)
		if !ok {
			return
		}
		if timeAnchorID == "" && a.Find("time").Length() > 0 {
			timeAnchorID = id
		} else if otherID == "" && id != rootID {
			otherID = id
		}
	})

	switch {
	case timeAnchorID != "" && timeAnchorID != rootID:
		return timeAnchorID, true
	case otherID != "":
		return otherID, true
	case timeAnchorID != "":
		return timeAnchorID, true
	default:
		return "", false
	}
}

func idFromHref(href string) (string, bool) {
	idx := strings.Index(href, statusIDPattern)
	if idx < 0 {
		return "", false
	}
	rest := href[idx+len(statusIDPattern):]
	end := strings.IndexAny(rest, "/?#")
	if end >= 0 {
		rest = rest[:end]
	}
	if rest == "" {
		return "", false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return rest, true
}

// extracted holds the fields common to root posts and replies, parsed from
// a single post-card fragment.
type extracted struct {
	authorName   string
	authorHandle string
	text         string
	createdAt    time.Time
	likeCount    int64
	replyCount   int64
	repostCount  int64
}

// ExtractRootPost parses the first article in a conversation into a
// RootPost. id must already be known (extracted by the caller via
// ExtractIDFromPostCard over a live Card).
func ExtractRootPost(cardHTML, id string) (model.RootPost, bool) {
	e, ok := extractCommon(cardHTML)
	if !ok {
		return model.RootPost{}, false
	}
	return model.RootPost{
		ID:           id,
		AuthorName:   e.authorName,
		AuthorHandle: e.authorHandle,
		Text:         e.text,
		CreatedAt:    e.createdAt,
		LikeCount:    e.likeCount,
		ReplyCount:   e.replyCount,
		RepostCount:  e.repostCount,
	}, true
}

// ExtractReply parses a post-card fragment into a Reply. replyTo is stored
// as given; the Reply Enumerator passes rootID for every reply.
func ExtractReply(cardHTML, id, rootID, replyTo string) (model.Reply, bool) {
	e, ok := extractCommon(cardHTML)
	if !ok {
		return model.Reply{}, false
	}
	return model.Reply{
		ID:           id,
		RootID:       rootID,
		AuthorName:   e.authorName,
		AuthorHandle: e.authorHandle,
		Text:         e.text,
		CreatedAt:    e.createdAt,
		LikeCount:    e.likeCount,
		ReplyTo:      replyTo,
	}, true
}

func extractCommon(cardHTML string) (extracted, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cardHTML))
	if err != nil {
		return extracted{}, false
	}

	var e extracted
	e.authorName, e.authorHandle = parseAuthorLine(authorLineText(doc))
	e.text = bodyText(doc)
	e.text += mediaTags(doc)
	e.createdAt = parseCreatedAt(doc)

	doc.Find(`[data-testid="like"]`).First().Each(func(_ int, s *goquery.Selection) {
		e.likeCount = ParseCount(s.Text())
	})
	doc.Find(`[data-testid="reply"]`).First().Each(func(_ int, s *goquery.Selection) {
		e.replyCount = ParseCount(s.Text())
	})
	doc.Find(`[data-testid="retweet"]`).First().Each(func(_ int, s *goquery.Selection) {
		e.repostCount = ParseCount(s.Text())
	})

	return e, true
}

// parseCreatedAt reads the canonical permalink anchor's <time datetime="...">
// attribute, the only reliable source of a post's creation instant in the
// static markup.
func parseCreatedAt(doc *goquery.Document) time.Time {
	datetime, ok := doc.Find("time").First().Attr("datetime")
	if !ok {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, datetime)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func authorLineText(doc *goquery.Document) string {
	sel := doc.Find(`[data-testid="User-Name"]`).First()
	if sel.Length() == 0 {
		return ""
	}
	return strings.Join(strings.Fields(sel.Text()), " ")
}

// parseAuthorLine splits the author line "<name>@<handle>" (the platform
// renders the display name directly adjacent to the "@handle", with no
// separator beyond the "@").
func parseAuthorLine(line string) (name, handle string) {
	at := strings.Index(line, "@")
	if at < 0 {
		return strings.TrimSpace(line), ""
	}
	name = strings.TrimSpace(line[:at])
	rest := line[at+1:]
	end := strings.IndexAny(rest, " \t\n")
	if end >= 0 {
		handle = rest[:end]
	} else {
		handle = rest
	}
	return name, strings.TrimSpace(handle)
}

func bodyText(doc *goquery.Document) string {
	sel := doc.Find(`[data-testid="tweetText"]`).First()
	if sel.Length() > 0 {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			return text
		}
	}
	if title := strings.TrimSpace(doc.Find(`[data-testid="card.layoutLarge.detail"]`).First().Text()); title != "" {
		if len(title) > 50 {
			title = title[:50]
		}
		return "[链接] " + title
	}
	if doc.Find(`[data-testid="card.wrapper"]`).Length() > 0 {
		return "[链接]"
	}
	return ""
}

// mediaTags appends the canonical media placeholder tags for any photo or
// video content found in the card, each at most once.
func mediaTags(doc *goquery.Document) string {
	var tags strings.Builder
	if doc.Find(`[data-testid="tweetPhoto"]`).Length() > 0 {
		tags.WriteString(" [图片]")
	}
	if doc.Find(`[data-testid="videoPlayer"]`).Length() > 0 || doc.Find("video").Length() > 0 {
		tags.WriteString(" [视频]")
	}
	return tags.String()
}

// ParseCount parses engagement-count text, stripping thousands separators
// and expanding a trailing K/M multiplier. Empty or unparsable input yields
// zero.
func ParseCount(raw string) int64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "K") || strings.HasSuffix(s, "k"):
		multiplier = 1000
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "M") || strings.HasSuffix(s, "m"):
		multiplier = 1_000_000
		s = s[:len(s)-1]
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f * float64(multiplier))
}
