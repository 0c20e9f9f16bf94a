package classify

import "testing"

func TestIsBinaryBySuffix(t *testing.T) {
	cases := map[string]bool{
		"/cat.png":        true,
		"/app.js":         false,
		"/font.woff2":     true,
		"/archive.tar.gz": true,
		"/index.html":     false,
	}
	for p, want := range cases {
		if got := IsBinaryBySuffix(p); got != want {
			t.Errorf("IsBinaryBySuffix(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestByContentType(t *testing.T) {
	cases := map[string]Kind{
		"text/html; charset=utf-8":  KindHTML,
		"text/css":                  KindCSS,
		"application/javascript":    KindJS,
		"text/javascript":           KindJS,
		"application/json":          KindJSON,
		"application/xml":           KindXML,
		"text/xml":                  KindXML,
		"text/plain":                KindText,
		"image/png":                 KindBinary,
		"image/svg+xml":             KindBinary,
		"application/octet-stream":  KindBinary,
		"application/vnd.ms-excel":  KindBinary,
		"font/woff2":                KindBinary,
		"application/pdf":           KindBinary,
		"video/mp4":                 KindBinary,
		"":                          KindBinary,
	}
	for ct, want := range cases {
		if got := ByContentType(ct); got != want {
			t.Errorf("ByContentType(%q) = %v, want %v", ct, got, want)
		}
	}
}
