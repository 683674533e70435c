package probe

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxParseBytes   = 1 << 20 // 1 MiB
	maxSummaryRunes = 160
)

// buildSummary produces a short description of the response body for run
// reports. HTML pages (typically gateway error pages) get their title
// extracted; everything else is reduced to a whitespace-collapsed snippet.
func buildSummary(contentType string, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if len(body) > maxParseBytes {
		body = body[:maxParseBytes]
	}

	if looksLikeHTML(contentType, body) {
		if title := htmlTitle(body); title != "" {
			return clipRunes(title)
		}
	}

	return clipRunes(strings.Join(strings.Fields(string(body)), " "))
}

// htmlTitle extracts a page title from OG tags with plain tags as fallback.
func htmlTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	return firstNonEmpty(
		extract(`meta[property="og:title"]`),
		strings.TrimSpace(doc.Find("title").First().Text()),
		extract(`meta[name="description"]`),
	)
}

func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	head := body
	if len(head) > 256 {
		head = head[:256]
	}
	prefix := strings.ToLower(strings.TrimSpace(string(head)))
	return strings.HasPrefix(prefix, "<!doctype html") || strings.HasPrefix(prefix, "<html")
}

func clipRunes(s string) string {
	runes := []rune(s)
	if len(runes) <= maxSummaryRunes {
		return s
	}
	return string(runes[:maxSummaryRunes])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
