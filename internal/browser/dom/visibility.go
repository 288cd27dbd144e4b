package dom

import (
	"net/url"
	"strings"
)

// minFrameArea is the smallest frame box, in square CSS pixels, worth indexing.
const minFrameArea = 10

// IsAdURL reports whether a frame URL points at an ad or tracker host. A URL
// without a host (about:blank, data:, javascript:) counts as one since it
// cannot be addressed later.
func IsAdURL(raw string, patterns []string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return true
	}
	for _, p := range patterns {
		if p != "" && strings.Contains(u.Host, p) {
			return true
		}
	}
	return false
}

// ParseInlineStyle splits a style attribute into property/value pairs.
// Later declarations win.
func ParseInlineStyle(style string) map[string]string {
	out := make(map[string]string)
	for _, rule := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(rule, ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(prop)] = strings.TrimSpace(val)
	}
	return out
}

// FrameVisible decides whether a sub-frame should be indexed.
func FrameVisible(frame Frame, el *FrameElement, adPatterns []string) bool {
	if frame.Detached || IsAdURL(frame.URL, adPatterns) {
		return false
	}
	if el == nil {
		return false
	}
	if el.Style != "" {
		css := ParseInlineStyle(el.Style)
		if css["display"] == "none" || css["visibility"] == "hidden" {
			return false
		}
	}
	b := el.Box
	if b == nil {
		return false
	}
	if b.Left < 0 || b.Top < 0 || b.Width*b.Height < minFrameArea {
		return false
	}
	return true
}
