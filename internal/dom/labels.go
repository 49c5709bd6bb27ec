package dom

// CutoffHeadingLabels is the multilingual set of heading texts marking the
// boundary between a conversation's genuine replies and the platform's
// recommended-posts section. Kept as a data file per the design note to
// preserve the exact label set rather than hard-code it inline.
var CutoffHeadingLabels = []string{
	"More replies",
	"Discover more",
	"You might like",
	"Recommended",
	"Trending now",
	"更多回复",
	"发现更多",
	"为你推荐",
	"热门",
}

// ExpandButtonLabels is the multilingual regex set matching "show more"
// style buttons that fold low-quality or filtered replies. Each entry is a
// regular expression, not a literal string.
var ExpandButtonLabels = []string{
	`(?i)show more`,
	`(?i)show additional repl(y|ies)`,
	`(?i)more repl(y|ies)`,
	`(?i)probable spam`,
	`显示更多`,
	`更多回复`,
	`可能为垃圾`,
	`可能包含令人反感的内容`,
}
