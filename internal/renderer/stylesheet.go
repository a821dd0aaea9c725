package renderer

import (
	"fmt"
	"io"

	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultStyle is the chroma style used when none is configured.
const DefaultStyle = "github-dark"

// WriteStyleSheet writes the CSS for chroma's highlight classes in style.
// An empty style means DefaultStyle.
func WriteStyleSheet(w io.Writer, style string) error {
	if style == "" {
		style = DefaultStyle
	}
	s, ok := styles.Registry[style]
	if !ok {
		return fmt.Errorf("unknown highlight style %q", style)
	}
	formatter := html.New(html.WithClasses(true))
	if err := formatter.WriteCSS(w, s); err != nil {
		return fmt.Errorf("write %s stylesheet: %w", style, err)
	}
	return nil
}
