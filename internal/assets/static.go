package assets

import (
	"net/http"
	"strings"
)

// staticFile is one entry served under GET /assets/*.
type staticFile struct {
	Content     []byte
	ContentType string
}

const landingCSS = `
* { margin: 0; padding: 0; box-sizing: border-box; }
body {
  font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
  min-height: 100vh;
  display: flex;
  align-items: center;
  justify-content: center;
  background: #0b0d12;
  color: #e7e9ee;
}
.card { max-width: 480px; padding: 2.5rem; text-align: center; }
h1 { font-size: 1.4rem; font-weight: 600; margin-bottom: 0.75rem; }
p { color: #9aa1af; line-height: 1.6; margin-bottom: 1.5rem; }
.target {
  font-family: "SF Mono", "Fira Code", monospace;
  background: #171a21;
  padding: 0.2em 0.5em;
  border-radius: 4px;
}
button {
  background: #4d7cfe;
  color: white;
  border: none;
  padding: 0.7em 1.4em;
  border-radius: 6px;
  font-size: 1rem;
  cursor: pointer;
}
`

var staticFiles = map[string]staticFile{
	"style.css": {Content: []byte(landingCSS), ContentType: "text/css; charset=utf-8"},
}

// ServeStatic writes the named static asset, or 404 if unknown.
func ServeStatic(w http.ResponseWriter, name string) {
	name = strings.TrimPrefix(name, "/")
	f, ok := staticFiles[name]
	if !ok {
		http.NotFound(w, nil)
		return
	}
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(f.Content)
}
