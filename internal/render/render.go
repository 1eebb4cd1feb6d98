// Package render converts untrusted assistant or user text into safe
// HTML. The same pipeline runs at persistence time and at streaming
// preview time so both sides agree on the rendered form.
package render

import (
	"bytes"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Format is the per-delta content hint sent alongside streamed text.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

var htmlTag = regexp.MustCompile(`<\w+[^>]*>`)

// LooksLikeHTML reports whether text contains an HTML tag-like
// substring. Used both for per-delta format hints and to pick the
// sanitize-only path at persistence time.
func LooksLikeHTML(s string) bool {
	return htmlTag.MatchString(s)
}

// FormatFor returns the format hint for a single streamed delta.
func FormatFor(delta string) Format {
	if LooksLikeHTML(delta) {
		return FormatHTML
	}
	return FormatMarkdown
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	// Inline screenshot evidence from document mode arrives as data URIs.
	p.AllowDataURIImages()
	p.AllowAttrs("target", "rel").OnElements("a")
	return p
}

// HTML renders text to safe HTML. Content that already looks like HTML
// is sanitized and otherwise trusted as-is, so re-rendering persisted
// output is a no-op beyond stripping disallowed markup. Plain text goes
// through the minimal markdown dialect (headings, bold, italics,
// autolinked URLs, hard line breaks) and is then sanitized the same way.
func HTML(text string) string {
	if text == "" {
		return ""
	}
	if LooksLikeHTML(text) {
		return policy.Sanitize(text)
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		// Conversion failing on plain text is unexpected; fall back to
		// sanitizing the raw input rather than dropping it.
		return policy.Sanitize(text)
	}
	return policy.Sanitize(buf.String())
}

var (
	anyTag  = regexp.MustCompile(`<[^>]*>`)
	dataURI = regexp.MustCompile(`data:[^\s"'<>)]+`)
)

// StripMarkup removes tags and embedded data-URI payloads, leaving the
// plain text. Applied to every transcript line before it reaches the
// oracle so binary blobs never inflate a completion request.
func StripMarkup(s string) string {
	s = dataURI.ReplaceAllString(s, "")
	return anyTag.ReplaceAllString(s, "")
}
