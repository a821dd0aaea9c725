// Package static embeds the browser assets: the forum stylesheet and script.
package static

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed css/*.css js/*.js
var assets embed.FS

// FS exposes the embedded assets.
func FS() fs.FS {
	return assets
}

// HTTP returns an http.FileSystem backed by the embedded assets.
func HTTP() http.FileSystem {
	return http.FS(assets)
}

// ReadFile returns one embedded asset, for example "css/forum.css".
func ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(assets, name)
}
