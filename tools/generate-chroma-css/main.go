// Package main prints the chroma stylesheet for a highlight style, for
// deployments that serve assets from a CDN instead of /highlight.css.
package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/alecthomas/chroma/v2/styles"
	"github.com/spf13/pflag"

	"github.com/vaadforum/vaad/internal/renderer"
)

func main() {
	flags := pflag.NewFlagSet("generate-chroma-css", pflag.ExitOnError)
	style := flags.StringP("style", "s", renderer.DefaultStyle, "chroma style name")
	out := flags.StringP("out", "o", "", "write to file instead of stdout")
	list := flags.Bool("list", false, "list available styles and exit")
	_ = flags.Parse(os.Args[1:])

	if *list {
		names := make([]string, 0, len(styles.Registry))
		for name := range styles.Registry {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", *out, err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	if err := renderer.WriteStyleSheet(w, *style); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating CSS: %v\n", err)
		os.Exit(1) //nolint:gocritic // exitAfterDefer: nothing useful was written
	}
}
