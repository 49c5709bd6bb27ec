package persistence

import "strings"

// Canonical media placeholder tags. An upsert stores the newest
// observation's text (after NormalizeMediaTags); a tag present only in an
// earlier observation's text is not carried over.
const (
	TagImage = "[图片]"
	TagVideo = "[视频]"
	TagLink  = "[链接]"
)

// misencodedReplacements maps known mis-encoded byte sequences for the
// canonical tags (observed mojibake from double UTF-8 decoding) to their
// correct form. Normalized on every write.
var misencodedReplacements = map[string]string{
	"[å\x9b¾ç\x89\x87]": TagImage,
	"[è§\x86é¢\x91]":      TagVideo,
	"[é\x93¾æ\x8e¥]":      TagLink,
}

// NormalizeMediaTags rewrites any known mis-encoded tag sequences in text to
// their canonical bracketed Chinese form.
func NormalizeMediaTags(text string) string {
	for broken, canonical := range misencodedReplacements {
		if strings.Contains(text, broken) {
			text = strings.ReplaceAll(text, broken, canonical)
		}
	}
	return text
}
