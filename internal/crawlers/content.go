package crawlers

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/osintkit/tiercrawl/internal/models"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// hydrationMarkers are global state variables and attributes SPA frameworks
// leave in the unrendered payload. Finding one means the real content is
// assembled client-side.
var hydrationMarkers = []string{
	"__next_data__",
	"window.__initial_state__",
	"window.__nuxt__",
	"window.__apollo_state__",
	"window.__preloaded_state__",
	"data-reactroot",
	"ng-version=",
}

// emptyMountSelectors are containers SPAs render into. An empty mount on the
// unrendered page is the strongest single signal a page needs JavaScript.
var emptyMountSelectors = []string{"#root", "#app", "#__next", "#___gatsby"}

// ExtractTitleAndText parses the document and returns the <title> plus the
// body text with script/style/noscript blocks stripped, tags removed and
// whitespace collapsed. Unparseable markup yields empty strings, never an
// error: downstream classification treats that as an empty page.
func ExtractTitleAndText(htmlSrc string) (title, text string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err != nil {
		return "", ""
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, noscript").Remove()
	body := doc.Find("body")
	if body.Length() > 0 {
		text = CollapseWhitespace(body.Text())
	} else {
		text = CollapseWhitespace(doc.Text())
	}
	return title, text
}

// NeedsJS decides whether a fetched page likely requires JavaScript
// rendering to reveal its substantive content. Signals, any one sufficient
// (deliberately permissive — escalation recall over precision):
//
//  1. a hydration-state marker or an empty SPA mount container
//  2. extracted body text under the minimum threshold, which also covers
//     the framework-signature-plus-thin-text case (a framework signature on
//     a text-rich page is only partial enhancement and never triggers alone)
//  3. a <noscript> block telling the visitor to enable JavaScript
func NeedsJS(htmlSrc, extractedText string) bool {
	lower := strings.ToLower(htmlSrc)
	for _, marker := range hydrationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err == nil {
		for _, sel := range emptyMountSelectors {
			mount := doc.Find(sel).First()
			if mount.Length() > 0 && strings.TrimSpace(mount.Text()) == "" {
				return true
			}
		}
		noscript := strings.ToLower(doc.Find("noscript").Text())
		if noscript != "" && (strings.Contains(noscript, "javascript") || strings.Contains(noscript, "browser")) {
			return true
		}
	}

	return len([]rune(extractedText)) < models.MinTextThreshold
}

// CollapseWhitespace trims and squeezes runs of whitespace into single
// spaces.
func CollapseWhitespace(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// TruncateChars caps a string at max characters (runes, not bytes) to bound
// per-result memory.
func TruncateChars(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
