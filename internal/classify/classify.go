// Package classify implements the response/URL classifier (C4, spec §3
// Classification K, §4.4).
package classify

import (
	"path"
	"strings"
)

// Kind is one of the response classifications from spec §3.
type Kind string

const (
	KindHTML   Kind = "html"
	KindCSS    Kind = "css"
	KindJS     Kind = "js"
	KindText   Kind = "text"
	KindJSON   Kind = "json"
	KindXML    Kind = "xml"
	KindBinary Kind = "binary"
)

// binaryExtensions is the suffix set that pre-detects binary before a
// fetch is even made (spec §4.4 stage 1).
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".ico": true, ".bmp": true, ".tiff": true, ".tif": true, ".avif": true,
	".svg": true,
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	".mp3": true, ".wav": true, ".ogg": true, ".flac": true, ".aac": true, ".m4a": true,
	".mp4": true, ".webm": true, ".mov": true, ".avi": true, ".mkv": true, ".m3u8": true, ".ts": true,
	".zip": true, ".gz": true, ".tar": true, ".rar": true, ".7z": true,
	".pdf": true, ".wasm": true,
	".exe": true, ".dmg": true, ".apk": true,
}

// IsBinaryBySuffix reports whether urlPath's extension is in the known
// binary-extension set (spec §4.4 stage 1).
func IsBinaryBySuffix(urlPath string) bool {
	ext := strings.ToLower(path.Ext(urlPath))
	return binaryExtensions[ext]
}

var binaryContentTypePrefixes = []string{
	"image/", "audio/", "video/", "font/",
	"application/octet-stream", "application/pdf", "application/zip",
	"application/gzip", "application/wasm", "application/vnd.", "application/x-font",
}

// ByContentType classifies a response by its Content-Type header value,
// per spec §3/§4.4 stage 2. image/svg+xml is deliberately binary (spec §8
// boundary behavior: SVG is served verbatim to avoid XML-encoding
// surprises), which the generic "image/" prefix already covers.
func ByContentType(contentType string) Kind {
	ct := strings.ToLower(contentType)
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	ct = strings.TrimSpace(ct)

	for _, prefix := range binaryContentTypePrefixes {
		if strings.HasPrefix(ct, prefix) {
			return KindBinary
		}
	}

	switch {
	case ct == "text/html":
		return KindHTML
	case ct == "text/css":
		return KindCSS
	case strings.Contains(ct, "javascript") || strings.Contains(ct, "ecmascript"):
		return KindJS
	case ct == "application/json":
		return KindJSON
	case ct == "application/xml" || ct == "text/xml":
		return KindXML
	case strings.HasPrefix(ct, "text/"):
		return KindText
	default:
		return KindBinary
	}
}
