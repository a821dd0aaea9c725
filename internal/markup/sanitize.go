package markup

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var (
	digitsOnly  = regexp.MustCompile(`^[0-9]+$`)
	markupClass = regexp.MustCompile(`^(reply-link|spoiler|chroma|line|[a-z]{1,3})$`)
	blankTarget = regexp.MustCompile(`^_blank$`)
)

// SanitizePolicy returns a UGC policy that keeps every element and attribute
// the pipeline itself emits while dropping scripts, event handlers, unsafe
// URLs and unsafe style values. Pass it to WithSanitizer to harden rendering.
func SanitizePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("b", "i", "s", "mark", "code", "pre", "blockquote", "hr", "br", "h2", "h3", "ul", "ol", "li", "span")
	p.AllowAttrs("class").Matching(markupClass).OnElements("a", "span", "pre", "code")
	p.AllowAttrs("data-reply-post").Matching(digitsOnly).OnElements("a")
	p.AllowAttrs("target").Matching(blankTarget).OnElements("a")
	p.AllowStyles("background", "padding", "border-radius").OnElements("span")
	p.AllowRelativeURLs(true)
	return p
}
