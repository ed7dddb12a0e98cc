package resolver

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// metaPlaceholder suppresses a social-preview candidate for a given domain
// when its URL contains a known placeholder marker (site logos and similar
// images some sites put into og:image instead of the product shot).
type metaPlaceholder struct {
	domainSubstring string
	urlSubstring    string
}

// metaPlaceholders is consulted per candidate; a hit drops the candidate and
// lets the cascade fall through to the next extractor. Entries here are
// tuned empirically, not exhaustive.
var metaPlaceholders = []metaPlaceholder{
	{domainSubstring: "mercari.com", urlSubstring: "ogp_default"},
	{domainSubstring: "rakuten.co.jp", urlSubstring: "/common/logo"},
	{domainSubstring: "yahoo.co.jp", urlSubstring: "ogp_default"},
}

// extractMetadata checks the social-preview meta tags: og:image first, then
// twitter:image. Returns an empty candidate when neither is present or the
// value is suppressed by the placeholder denylist for this host.
func extractMetadata(doc *goquery.Document, host string) (Candidate, bool) {
	if ref := metaProperty(doc, "og:image"); usableRef(ref) && !isMetaPlaceholder(host, ref) {
		return Candidate{URL: ref, Signal: SignalMetadata}, true
	}
	if ref := metaName(doc, "twitter:image"); usableRef(ref) && !isMetaPlaceholder(host, ref) {
		return Candidate{URL: ref, Signal: SignalMetadata}, true
	}
	return Candidate{}, false
}

// metaProperty returns the content of the first <meta property=...> tag.
func metaProperty(doc *goquery.Document, property string) string {
	content := ""
	doc.Find(`meta[property]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if p, _ := s.Attr("property"); p != property {
			return true
		}
		if c, ok := s.Attr("content"); ok && c != "" {
			content = strings.TrimSpace(c)
			return false
		}
		return true
	})
	return content
}

// metaName returns the content of the first <meta name=...> tag.
func metaName(doc *goquery.Document, name string) string {
	content := ""
	doc.Find(`meta[name]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if n, _ := s.Attr("name"); n != name {
			return true
		}
		if c, ok := s.Attr("content"); ok && c != "" {
			content = strings.TrimSpace(c)
			return false
		}
		return true
	})
	return content
}

func isMetaPlaceholder(host, ref string) bool {
	lower := strings.ToLower(ref)
	for _, p := range metaPlaceholders {
		if strings.Contains(host, p.domainSubstring) && strings.Contains(lower, p.urlSubstring) {
			return true
		}
	}
	return false
}
