package crawlers

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/osintkit/tiercrawl/internal/models"
)

// LinkFilter gates which external links are kept. Both gates are optional
// and AND-combined when both are set; an empty gate passes everything.
type LinkFilter struct {
	CountryTLDs []string // allowed host suffixes, e.g. ".uk"
	URLKeywords []string // substrings the full URL must contain (any one)
}

// ExtractLinks walks the document and returns classified hyperlinks.
//
// Anchors are matched tolerant of nested tags; anchor text is the stripped,
// whitespace-collapsed inner text. Relative hrefs resolve against baseURL.
// Non-http(s) schemes and unparseable hrefs are skipped silently. A link is
// internal only when its host string equals the base host exactly, so a
// "www." variant of the bare domain counts as external. Links deduplicate
// by resolved URL; on a duplicate href the first occurrence's anchor text
// wins.
func ExtractLinks(htmlSrc, baseURL string, filter LinkFilter) ([]models.OutlinkRecord, []string) {
	outlinks := []models.OutlinkRecord{}
	internalLinks := []string{}

	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return outlinks, internalLinks
	}
	doc, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return outlinks, internalLinks
	}

	seenExternal := make(map[string]bool)
	seenInternal := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			var href, rel string
			for _, attr := range n.Attr {
				switch strings.ToLower(attr.Key) {
				case "href":
					href = strings.TrimSpace(attr.Val)
				case "rel":
					rel = attr.Val
				}
			}
			if href != "" {
				if resolved, ok := resolveHref(base, href); ok {
					target := resolved.String()
					if resolved.Host == base.Host {
						if !seenInternal[target] {
							seenInternal[target] = true
							internalLinks = append(internalLinks, target)
						}
					} else if passesFilters(resolved, filter) {
						if !seenExternal[target] {
							seenExternal[target] = true
							outlinks = append(outlinks, models.OutlinkRecord{
								URL:        target,
								Domain:     resolved.Hostname(),
								AnchorText: CollapseWhitespace(anchorText(n)),
								IsNofollow: hasNofollow(rel),
								IsExternal: true,
							})
						}
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return outlinks, internalLinks
}

// resolveHref resolves href against the base URL and keeps only absolute
// http(s) targets. Malformed hrefs are not errors, just skipped.
func resolveHref(base *url.URL, href string) (*url.URL, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil, false
	}
	if resolved.Host == "" {
		return nil, false
	}
	return resolved, true
}

// anchorText collects the text of an anchor's descendants, stripping any
// nested tags.
func anchorText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}

func hasNofollow(rel string) bool {
	for _, token := range strings.FieldsFunc(rel, func(r rune) bool { return r == ' ' || r == ',' }) {
		if strings.EqualFold(token, "nofollow") {
			return true
		}
	}
	return false
}

func passesFilters(link *url.URL, filter LinkFilter) bool {
	if len(filter.CountryTLDs) > 0 {
		host := strings.ToLower(link.Hostname())
		matched := false
		for _, tld := range filter.CountryTLDs {
			tld = strings.ToLower(strings.TrimSpace(tld))
			if tld == "" {
				continue
			}
			if !strings.HasPrefix(tld, ".") {
				tld = "." + tld
			}
			if strings.HasSuffix(host, tld) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(filter.URLKeywords) > 0 {
		full := link.String()
		matched := false
		for _, kw := range filter.URLKeywords {
			if kw != "" && strings.Contains(full, kw) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
