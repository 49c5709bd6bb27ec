package dom

import "strings"

// loginWallPhrases identifies a login/sign-up prompt blocking further
// replies from loading.
var loginWallPhrases = []string{
	"Log in",
	"Sign up",
	"登录",
	"注册",
}

// viewRepliesTeaserPrefixes identifies the "view N replies" teaser the
// platform shows above a login wall.
var viewRepliesTeaserPrefixes = []string{
	"View", // "View 12 replies"
	"查看",
}

// DetectReplyLoginWall reports whether bodyText/cardCount together describe
// a login-walled reply page: a login prompt, a "view N replies" teaser, and
// no more than two visible post cards.
func DetectReplyLoginWall(bodyText string, cardCount int) bool {
	if cardCount > 2 {
		return false
	}
	if !containsAny(bodyText, loginWallPhrases) {
		return false
	}
	return containsAny(bodyText, viewRepliesTeaserPrefixes)
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// unavailablePhrases identifies a deleted/restricted root post, as opposed
// to one merely blocked by a login wall.
var unavailablePhrases = []string{
	"This post was deleted",
	"This Tweet is unavailable",
	"Hmm, this page doesn't exist",
	"Account suspended",
}

// DetectRootUnavailable reports whether the page's body text indicates the
// root post itself is gone, rather than merely requiring authentication.
func DetectRootUnavailable(bodyText string) bool {
	return containsAny(bodyText, unavailablePhrases)
}
