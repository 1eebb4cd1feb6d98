// Package citations models the evidence metadata attached to turns:
// text citations and prompt-evidence items. Historical clients stored
// prompt items in several shapes (bare strings, data-URI strings,
// objects with varying key names); everything is normalized into one
// tagged union before it reaches core logic.
package citations

import (
	"encoding/json"
	"strings"
)

// Kind discriminates the evidence item variants.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Item is either a text citation or an inline image reference.
type Item struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
	Alt  string `json:"alt,omitempty"`
}

// TextItem builds a text evidence item.
func TextItem(s string) Item { return Item{Kind: KindText, Text: s} }

// ImageItem builds an image evidence item.
func ImageItem(url, alt string) Item { return Item{Kind: KindImage, URL: url, Alt: alt} }

// legacyItem covers every object key spelling older clients used.
type legacyItem struct {
	Kind    string `json:"kind"`
	Text    string `json:"text"`
	Label   string `json:"label"`
	URL     string `json:"url"`
	Src     string `json:"src"`
	Href    string `json:"href"`
	Alt     string `json:"alt"`
	AltText string `json:"altText"`
}

// Normalize converts a raw JSON array of legacy-shaped prompt items
// into the tagged union. Unrecognized entries are dropped rather than
// surfaced as errors; metadata is advisory.
func Normalize(raw json.RawMessage) []Item {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		// A bare string instead of an array also appeared historically.
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if item, ok := fromString(s); ok {
				return []Item{item}
			}
		}
		return nil
	}
	out := make([]Item, 0, len(entries))
	for _, e := range entries {
		if item, ok := normalizeEntry(e); ok {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeEntry(raw json.RawMessage) (Item, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return fromString(s)
	}
	var l legacyItem
	if err := json.Unmarshal(raw, &l); err != nil {
		return Item{}, false
	}
	url := firstNonEmpty(l.URL, l.Src, l.Href)
	if l.Kind == string(KindImage) || url != "" && looksLikeImageRef(url) {
		if url == "" {
			return Item{}, false
		}
		return ImageItem(url, firstNonEmpty(l.Alt, l.AltText)), true
	}
	text := firstNonEmpty(l.Text, l.Label, url)
	if text == "" {
		return Item{}, false
	}
	return TextItem(text), true
}

func fromString(s string) (Item, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Item{}, false
	}
	if strings.HasPrefix(s, "data:") {
		return ImageItem(s, ""), true
	}
	return TextItem(s), true
}

func looksLikeImageRef(url string) bool {
	return strings.HasPrefix(url, "data:")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
