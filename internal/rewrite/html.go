package rewrite

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/veilproxy/veilproxy/internal/assets"
	"github.com/veilproxy/veilproxy/internal/urlcodec"
)

// Mode selects between the page rewriter and the narrower ad-frame variant
// (spec §4.5, §4.11).
type Mode int

const (
	ModePage Mode = iota
	ModeAdFrame
)

const (
	stateDefault = iota
	stateInStyle
)

// rewriteTable names the element/attribute pairs whose values are resolvable
// fetch targets (spec §4.5).
var rewriteTable = map[string][]string{
	"a":      {"href"},
	"link":   {"href"},
	"script": {"src"},
	"img":    {"src", "srcset"},
	"video":  {"src", "poster"},
	"audio":  {"src"},
	"source": {"src", "srcset"},
	"iframe": {"src"},
	"embed":  {"src"},
	"object": {"data"},
	"form":   {"action"},
	"input":  {"src"},
	"track":  {"src"},
	"area":   {"href"},
}

var dataURLAttrs = map[string]bool{
	"data-href": true, "data-src": true, "data-url": true, "data-link": true,
	"data-target": true, "data-action": true, "data-background": true,
	"data-image": true, "data-poster": true, "data-lazy-src": true,
	"data-srcset": true, "data-original": true,
}

type htmlAttr struct{ name, value string }

// RewriteHTML rewrites htmlDoc so every fetchable URL resolves through the
// proxy at proxyOrigin and the runtime interception scripts are injected at
// the top of <head>. Grounded on morty's sanitizeHTML tokenizer loop
// (StateDefault/StateInStyle), generalized from stripping unsafe elements to
// rewriting fetch targets, since spec §4.5 proxies scripts and iframes
// rather than removing them.
func RewriteHTML(htmlDoc string, base *url.URL, mode Mode, proxyOrigin string) string {
	effectiveBase := base
	alreadyInjected := strings.Contains(htmlDoc, assets.InjectionSentinel)

	decoder := html.NewTokenizer(strings.NewReader(htmlDoc))
	decoder.AllowCDATA(true)

	var out bytes.Buffer
	state := stateDefault
	headSeen := false

	for {
		tokenType := decoder.Next()
		if tokenType == html.ErrorToken {
			break
		}

		switch tokenType {
		case html.StartTagToken, html.SelfClosingTagToken:
			tagBytes, hasAttrs := decoder.TagName()
			tag := string(tagBytes)

			if tag == "base" {
				consumeBaseHref(decoder, hasAttrs, base, &effectiveBase)
				continue
			}

			attrs := readAttrs(decoder, hasAttrs)

			if tag == "meta" && isCSPMeta(attrs) {
				continue
			}

			out.WriteByte('<')
			out.WriteString(tag)
			writeAttrs(&out, tag, attrs, effectiveBase, mode)

			if tokenType == html.SelfClosingTagToken {
				out.WriteString(" />")
			} else {
				out.WriteByte('>')
				if tag == "style" {
					state = stateInStyle
				}
			}

			if tag == "head" && !headSeen {
				headSeen = true
				if !alreadyInjected {
					injectScripts(&out, base, proxyOrigin, mode)
				}
			}

		case html.EndTagToken:
			tagBytes, _ := decoder.TagName()
			tag := string(tagBytes)
			if tag == "style" {
				state = stateDefault
			}
			out.WriteString("</")
			out.WriteString(tag)
			out.WriteByte('>')

		case html.TextToken:
			if state == stateInStyle {
				out.WriteString(RewriteCSS(string(decoder.Raw()), effectiveBase))
			} else {
				out.Write(decoder.Raw())
			}

		case html.CommentToken, html.DoctypeToken:
			out.Write(decoder.Raw())
		}
	}

	result := out.String()
	if !headSeen && !alreadyInjected {
		var head bytes.Buffer
		head.WriteString("<head>")
		injectScripts(&head, base, proxyOrigin, mode)
		head.WriteString("</head>")
		result = head.String() + result
	}
	return result
}

func consumeBaseHref(decoder *html.Tokenizer, hasAttrs bool, base *url.URL, effectiveBase **url.URL) {
	if !hasAttrs {
		return
	}
	for {
		name, value, more := decoder.TagAttr()
		if string(name) == "href" {
			if resolved, err := urlcodec.ResolveURL(base, string(value)); err == nil {
				if resolved.Scheme == "http" || resolved.Scheme == "https" {
					*effectiveBase = resolved
				}
			}
		}
		if !more {
			break
		}
	}
}

func readAttrs(decoder *html.Tokenizer, hasAttrs bool) []htmlAttr {
	if !hasAttrs {
		return nil
	}
	var attrs []htmlAttr
	for {
		name, value, more := decoder.TagAttr()
		attrs = append(attrs, htmlAttr{string(name), string(value)})
		if !more {
			break
		}
	}
	return attrs
}

func isCSPMeta(attrs []htmlAttr) bool {
	for _, a := range attrs {
		if a.name == "http-equiv" {
			lower := strings.ToLower(a.value)
			return lower == "content-security-policy" || lower == "content-security-policy-report-only"
		}
	}
	return false
}

func writeAttrs(out *bytes.Buffer, tag string, attrs []htmlAttr, base *url.URL, mode Mode) {
	rewritable := rewriteTable[tag]

	for _, a := range attrs {
		name, value := a.name, a.value

		if name == "integrity" {
			continue
		}
		if mode == ModeAdFrame && name == "target" {
			fmt.Fprintf(out, ` %s="%s"`, name, html.EscapeString(value))
			continue
		}

		switch {
		case contains(rewritable, name) && name == "srcset":
			value = rewriteSrcset(value, base)
		case contains(rewritable, name):
			if rewritten, ok := resolveAndProxy(value, base); ok {
				value = rewritten
			}
		case name == "data-srcset":
			value = rewriteSrcset(value, base)
		case dataURLAttrs[name]:
			if rewritten, ok := resolveAndProxy(value, base); ok {
				value = rewritten
			}
		case name == "style":
			value = RewriteCSS(value, base)
		}

		fmt.Fprintf(out, ` %s="%s"`, name, html.EscapeString(value))
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// rewriteSrcset rewrites each comma-separated candidate URL in a srcset
// value while preserving its descriptor (1x, 100w, ...).
func rewriteSrcset(value string, base *url.URL) string {
	parts := strings.Split(value, ",")
	rewritten := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) == 0 {
			continue
		}
		candidate := fields[0]
		if proxied, ok := resolveAndProxy(candidate, base); ok {
			candidate = proxied
		}
		if len(fields) > 1 {
			rewritten = append(rewritten, candidate+" "+strings.Join(fields[1:], " "))
		} else {
			rewritten = append(rewritten, candidate)
		}
	}
	return strings.Join(rewritten, ", ")
}

func injectScripts(out *bytes.Buffer, base *url.URL, proxyOrigin string, mode Mode) {
	fmt.Fprintf(out, `<script %s="1">%s</script>`, assets.InjectionSentinel, assets.WebRTCScript())
	if mode == ModeAdFrame {
		out.WriteString("<script>")
		out.WriteString(assets.AdFrameScript(base.String()))
		out.WriteString("</script>")
		return
	}
	out.WriteString("<script>")
	out.WriteString(assets.RuntimeScript(base.String(), proxyOrigin))
	out.WriteString("</script>")
}
