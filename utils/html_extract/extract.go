// ABOUTME: Full-content extraction from fetched article pages
// ABOUTME: goquery pre-cleaning, readability extraction and bluemonday sanitization

package html_extract

import (
	"strings"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// MinExtractedLength is the minimum visible character count for an extraction
// result to be considered usable. Shorter results usually mean the extractor
// grabbed navigation chrome instead of the article.
const MinExtractedLength = 100

// ExtractArticleHTML extracts the main article content from a fetched page
// and returns sanitized HTML. The page is pre-cleaned with goquery before
// readability runs, and the result is sanitized with bluemonday. Returns ""
// when no usable content was found.
func ExtractArticleHTML(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	// Already plain text.
	if !strings.Contains(trimmed, "<") {
		if len(trimmed) < MinExtractedLength {
			return ""
		}
		return trimmed
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed)); err == nil {
		removeNonContentElements(doc)
		if cleaned, err := doc.Html(); err == nil && cleaned != "" {
			trimmed = cleaned
		}
	}

	if article, err := readability.FromReader(strings.NewReader(trimmed), nil); err == nil {
		var buf strings.Builder
		if err := article.RenderHTML(&buf); err == nil {
			if rendered := strings.TrimSpace(buf.String()); rendered != "" {
				sanitized := sanitizeArticleHTML(rendered)
				if visibleLength(sanitized) >= MinExtractedLength {
					return sanitized
				}
			}
		}
	}

	// Fallback: sanitize the pre-cleaned page directly.
	sanitized := sanitizeArticleHTML(trimmed)
	if visibleLength(sanitized) < MinExtractedLength {
		return ""
	}
	return sanitized
}

// ExtractTitle extracts the page title. Priority order: <title> tag, og:title
// meta tag, first <h1>. Returns "" when none is present.
func ExtractTitle(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return ""
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}

	if ogTitle, exists := doc.Find("meta[property='og:title']").First().Attr("content"); exists {
		if title := strings.TrimSpace(ogTitle); title != "" {
			return title
		}
	}

	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// removeNonContentElements drops page chrome before readability runs so site
// navigation never wins the content scoring.
func removeNonContentElements(doc *goquery.Document) {
	doc.Find("head, script, style, noscript, title, aside, nav, header, footer").Remove()
	doc.Find("iframe, embed, object, video, audio, canvas, svg, math, form").Remove()

	doc.Find("[class*='social'], [class*='share'], [class*='twitter'], [class*='facebook'], [class*='instagram'], [class*='linkedin']").Remove()
	doc.Find("[id*='social'], [id*='share'], [id*='twitter'], [id*='facebook']").Remove()

	doc.Find("[class*='comment'], [id*='comment'], [class*='discussion'], [id*='discussion']").Remove()

	doc.Find("[class*='menu'], [id*='menu'], [class*='sidebar'], [id*='sidebar'], [class*='widget'], [id*='widget']").Remove()
	doc.Find("[role='navigation'], [role='banner'], [role='contentinfo']").Remove()
}

// sanitizeArticleHTML keeps structural and text formatting elements while
// removing scripts, event handlers and unsafe URL schemes.
func sanitizeArticleHTML(raw string) string {
	p := bluemonday.NewPolicy()

	p.AllowElements("article", "section", "div", "p", "span", "br")
	p.AllowElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowElements("ul", "ol", "li", "dl", "dt", "dd")
	p.AllowElements("blockquote", "pre", "code")
	p.AllowElements("b", "strong", "i", "em", "u", "s", "del", "ins", "mark", "sub", "sup")
	p.AllowElements("table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption", "colgroup", "col")
	p.AllowElements("hr", "figure", "figcaption")

	p.AllowStandardURLs()
	p.AllowRelativeURLs(true)
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("src", "alt", "title").OnElements("img")
	p.AllowElements("img")
	p.AllowURLSchemes("http", "https", "mailto")

	return p.Sanitize(raw)
}

// visibleLength is the character count of the text content once tags are
// stripped.
func visibleLength(rawHTML string) int {
	return len(strings.TrimSpace(StripTags(rawHTML)))
}

// StripTags removes all markup and collapses whitespace, skipping script and
// style blocks entirely.
func StripTags(raw string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(raw))

	depthSkip := 0

	for {
		switch tt := z.Next(); tt {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")

		case html.StartTagToken:
			name, _ := z.TagName()
			if skipTag(name) {
				depthSkip++
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if skipTag(name) && depthSkip > 0 {
				depthSkip--
			}

		case html.TextToken:
			if depthSkip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func skipTag(name []byte) bool {
	switch string(name) {
	case "script", "style", "noscript":
		return true
	default:
		return false
	}
}
