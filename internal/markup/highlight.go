package markup

import (
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

func (r *Renderer) codeBlock(body string) string {
	if r.highlight != "" {
		if html, ok := highlightFence(body, r.highlight); ok {
			return html
		}
	}
	return "<pre><code>" + body + "</code></pre>"
}

// highlightFence treats a fence whose first line is a single known language
// name as a language tag. Anything else is left for the plain wrapper.
func highlightFence(body, style string) (string, bool) {
	head, code, found := strings.Cut(body, "\n")
	lang := strings.TrimSpace(head)
	if !found || lang == "" || strings.ContainsAny(lang, " \t") {
		return "", false
	}

	lexer := lexers.Get(lang)
	if lexer == nil {
		return "", false
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", false
	}

	formatter := chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.WithLineNumbers(false),
	)
	var b strings.Builder
	if err := formatter.Format(&b, styles.Get(style), iterator); err != nil {
		return "", false
	}
	return b.String(), true
}
