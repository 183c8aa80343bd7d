// Package web holds the page templates and static assets of the detector UI.
// Components are named templates: "index" is the full page, "panel" is the
// part the page script swaps on every state change, and "upload",
// "loading" and "result" are the presentational pieces inside it.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Templates parses all component templates. It is called once at startup.
func Templates() (*template.Template, error) {
	return template.New("web").ParseFS(templateFS, "templates/*.html")
}

// Static returns the embedded css and js served under /static.
func Static() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("failed to create static sub-filesystem: " + err.Error())
	}
	return http.FS(sub)
}
