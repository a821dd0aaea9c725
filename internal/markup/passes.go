package markup

import (
	"log/slog"
	"strings"

	"github.com/dlclark/regexp2"
)

type pass struct {
	name  string
	apply func(*state, string) string
}

// Reference patterns. Character classes are spelled out in ASCII because
// regexp2 follows .NET, where \w and \d are Unicode-aware.
const (
	fencePattern      = "```([\\s\\S]*?)```"
	inlineCodePattern = "`([^`]+)`"
	replyPattern      = `>>>[A-Za-z0-9_-]+\[post:([0-9]+)\]`
	quotePattern      = `(^|\n)>(?![ \t]*>)(.*)`
	h3Pattern         = `(^|\n)### (.*)`
	h2Pattern         = `(^|\n)## (.*)`
	rulePattern       = `(^|\n)---(?=\n|$)`
	bulletPattern     = `(^|\n)((?:- |\* ).+(?:\n(?:- |\* ).+)*)`
	numberedPattern   = `(^|\n)([0-9]+\. .+(?:\n[0-9]+\. .+)*)`
	colorPattern      = `@@((?>[^:@]+)):([\s\S]+?)@@`
	labelLinkPattern  = `\[\[(https?://(?>[^|\]\[]+))\|(?>\s*)((?:(?!\]\]|\[\[).)*?)\]\]`
	bareLinkPattern   = `\[\[(https?://(?>[^\]\[]+))\]\]`
	mentionPattern    = `\{\{([a-zA-Z0-9_-]+)\}\}`
	spoilerPattern    = `\|\|(.*?)\|\|`
)

// emphasis rewrites run in this order; the single-delimiter forms only see
// what the double-delimiter forms left behind.
var emphasisRules = []struct {
	pattern     string
	replacement string
}{
	{`\*\*(.*?)\*\*`, "<b>$1</b>"},
	{`\*(.*?)\*`, "<b>$1</b>"},
	{`__(.*?)__`, "<i>$1</i>"},
	{`_(.*?)_`, "<i>$1</i>"},
	{`~(.*?)~`, "<s>$1</s>"},
	{`==(.*?)==`, "<mark>$1</mark>"},
}

func (r *Renderer) compile(expr string) *regexp2.Regexp {
	re := regexp2.MustCompile(expr, regexp2.None)
	if r.timeout > 0 {
		re.MatchTimeout = r.timeout
	}
	return re
}

func (r *Renderer) buildPasses() []pass {
	emphasis := make([]step, 0, len(emphasisRules))
	for _, rule := range emphasisRules {
		emphasis = append(emphasis, r.replace(rule.pattern, rule.replacement))
	}

	return []pass{
		{name: "escape", apply: func(st *state, in string) string {
			return st.protect.Replace(in)
		}},
		r.newPass("code-block", r.replaceFunc(fencePattern, func(st *state, m regexp2.Match) string {
			return st.hide(r.codeBlock(group(m, 1)))
		})),
		r.newPass("inline-code", r.replaceFunc(inlineCodePattern, func(st *state, m regexp2.Match) string {
			return st.hide("<code>" + group(m, 1) + "</code>")
		})),
		r.newPass("reply-reference", r.replaceFunc(replyPattern, func(_ *state, m regexp2.Match) string {
			id := group(m, 1)
			return `<a href="#post-` + id + `" class="reply-link" data-reply-post="` + id + `">` + m.String() + `</a>`
		})),
		r.newPass("blockquote", r.replace(quotePattern, "$1<blockquote>$2</blockquote>")),
		r.newPass("heading",
			r.replace(h3Pattern, "$1<h3>$2</h3>"),
			r.replace(h2Pattern, "$1<h2>$2</h2>"),
		),
		r.newPass("rule", r.replace(rulePattern, "$1<hr/>")),
		r.newPass("list",
			r.replaceFunc(bulletPattern, func(_ *state, m regexp2.Match) string {
				return group(m, 1) + "<ul>" + listItems(group(m, 2), stripBullet) + "</ul>"
			}),
			r.replaceFunc(numberedPattern, func(_ *state, m regexp2.Match) string {
				return group(m, 1) + "<ol>" + listItems(group(m, 2), stripNumber) + "</ol>"
			}),
		),
		r.newPass("emphasis", emphasis...),
		r.newPass("color", r.replace(colorPattern,
			`<span style="background:$1; padding:2px 4px; border-radius:3px;">$2</span>`)),
		r.newPass("link",
			r.replaceFunc(labelLinkPattern, func(_ *state, m regexp2.Match) string {
				return `<a href="` + strings.TrimSpace(group(m, 1)) + `" target="_blank" rel="noopener">` + group(m, 2) + `</a>`
			}),
			r.replace(bareLinkPattern, `<a href="$1" target="_blank" rel="noopener">$1</a>`),
		),
		r.newPass("mention", r.replaceFunc(mentionPattern, func(_ *state, m regexp2.Match) string {
			name := group(m, 1)
			return `<a href="` + r.profileURL(name) + `">@` + name + `</a>`
		})),
		r.newPass("spoiler", r.replace(spoilerPattern, `<span class="spoiler">$1</span>`)),
		r.newPass("emoji", r.replaceFunc(emojiPattern(), func(_ *state, m regexp2.Match) string {
			return emojiGlyphs[group(m, 1)]
		})),
		{name: "line-break", apply: func(_ *state, in string) string {
			return strings.ReplaceAll(in, "\n", "<br/>")
		}},
		{name: "restore", apply: func(st *state, in string) string {
			return st.restore.Replace(st.unhide(in))
		}},
	}
}

// step is one rewrite inside a pass. A non-nil error means the pattern engine
// gave up and out must be ignored.
type step func(st *state, in string) (out string, err error)

func (r *Renderer) newPass(name string, steps ...step) pass {
	return pass{name: name, apply: func(st *state, in string) string {
		for _, s := range steps {
			out, err := s(st, in)
			if err != nil {
				r.logger.Debug("pass degraded", slog.String("pass", name), slog.Any("err", err))
				continue
			}
			in = out
		}
		return in
	}}
}

func (r *Renderer) replace(expr, replacement string) step {
	re := r.compile(expr)
	return func(_ *state, in string) (string, error) {
		return re.Replace(in, replacement, -1, -1)
	}
}

func (r *Renderer) replaceFunc(expr string, fn func(*state, regexp2.Match) string) step {
	re := r.compile(expr)
	return func(st *state, in string) (string, error) {
		return re.ReplaceFunc(in, func(m regexp2.Match) string {
			return fn(st, m)
		}, -1, -1)
	}
}

func group(m regexp2.Match, n int) string {
	g := m.GroupByNumber(n)
	if g == nil {
		return ""
	}
	return g.String()
}

func listItems(block string, strip func(string) string) string {
	var b strings.Builder
	for _, line := range strings.Split(block, "\n") {
		b.WriteString("<li>")
		b.WriteString(strip(line))
		b.WriteString("</li>")
	}
	return b.String()
}

func stripBullet(line string) string {
	if rest, ok := strings.CutPrefix(line, "- "); ok {
		return rest
	}
	return strings.TrimPrefix(line, "* ")
}

func stripNumber(line string) string {
	if i := strings.Index(line, ". "); i >= 0 {
		return line[i+2:]
	}
	return line
}
