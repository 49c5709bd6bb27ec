package dom

// PostCardSelector matches a single post-card element, root or reply alike.
const PostCardSelector = `article[data-testid="tweet"]`

// TabListSelector matches the profile page's post/replies/media tab strip,
// used by the Account-Page Harvester to know the page has finished its
// initial render.
const TabListSelector = `[role="tablist"]`

// SortTabRecent and SortTabTop are the tab labels the Reply Enumerator
// clicks to switch ordering.
const (
	SortTabRecent = "Latest"
	SortTabTop    = "Top"
)
