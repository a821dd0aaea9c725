package markup

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// escapable lists the metacharacters a backslash protects from every pass.
var escapable = []byte{'*', '_', '~', '{', '}', '[', ']', '`', '|', '=', '>', '@'}

type emoji struct {
	token string
	glyph string
}

// emojiTable is the fixed shortcode set recognised inside braces, e.g. "{ :) }".
var emojiTable = []emoji{
	{":)", "\U0001F642"},
	{":(", "\U0001F641"},
	{":D", "\U0001F604"},
	{";)", "\U0001F609"},
	{":P", "\U0001F61B"},
	{"<3", "\u2764\uFE0F"},
}

var emojiGlyphs = func() map[string]string {
	m := make(map[string]string, len(emojiTable))
	for _, e := range emojiTable {
		m[e.token] = e.glyph
	}
	return m
}()

// emojiPattern builds one alternation over the table, longest tokens first so
// that a match at a given position is always the longest candidate.
func emojiPattern() string {
	tokens := make([]string, 0, len(emojiTable))
	for _, e := range emojiTable {
		tokens = append(tokens, e.token)
	}
	sort.SliceStable(tokens, func(i, j int) bool { return len(tokens[i]) > len(tokens[j]) })
	for i, t := range tokens {
		tokens[i] = regexp2.Escape(t)
	}
	return `\{\s*(` + strings.Join(tokens, "|") + `)\s*\}`
}

// Placeholders are framed by a private-use rune that is absent from the input,
// so neither user text nor pass output can ever spell one by accident. The
// basic-plane area is tried first, then the two supplementary planes.
var sentinelRanges = [...][2]rune{
	{'\uE000', '\uF8FF'},
	{'\U000F0000', '\U000FFFFD'},
	{'\U00100000', '\U0010FFFD'},
}

// pickSentinel only runs out when the input holds all private-use code
// points, which takes over half a megabyte of text.
func pickSentinel(raw string) rune {
	for _, span := range sentinelRanges {
		for r := span[0]; r <= span[1]; r++ {
			if !strings.ContainsRune(raw, r) {
				return r
			}
		}
	}
	return sentinelRanges[len(sentinelRanges)-1][1]
}

func escapeToken(sentinel rune, i int) string {
	return string(sentinel) + "e" + strconv.Itoa(i) + string(sentinel)
}

func stashToken(sentinel rune, i int) string {
	return string(sentinel) + "c" + strconv.Itoa(i) + string(sentinel)
}

func escapeReplacers(sentinel rune) (protect, restore *strings.Replacer) {
	fwd := make([]string, 0, 2*len(escapable))
	back := make([]string, 0, 2*len(escapable))
	for i, c := range escapable {
		tok := escapeToken(sentinel, i)
		fwd = append(fwd, `\`+string(c), tok)
		back = append(back, tok, string(c))
	}
	return strings.NewReplacer(fwd...), strings.NewReplacer(back...)
}
