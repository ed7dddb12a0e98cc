package resolver

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// siteRule binds a domain substring to a hand-written extraction rule for
// that site's DOM layout. Rules are evaluated in registration order against
// the final URL's host; the first match is the only one that runs. No match
// means the stage is skipped, which is not a failure.
type siteRule struct {
	domainSubstring string
	extract         func(doc *goquery.Document) string
}

// siteRules is the static registry. Order matters: first match wins.
var siteRules = []siteRule{
	{domainSubstring: "mercari.com", extract: extractMercari},
	{domainSubstring: "amazon", extract: extractAmazon},
	{domainSubstring: "rakuten.co.jp", extract: extractRakuten},
}

// Precompiled matchers for the site rules. cascadia compiles at init so a
// bad selector fails fast instead of silently matching nothing per page.
var (
	selNextData       = cascadia.MustCompile(`script#__NEXT_DATA__[type="application/json"]`)
	selAmazonMain     = cascadia.MustCompile(`#imgTagWrapperId img, #ivLargeImage img, img#landingImage`)
	selRakutenGallery = cascadia.MustCompile(`[class*="image-gallery"] img, .rakutenLimitedId_ImageMain img`)
)

var mercdnOrigPhoto = regexp.MustCompile(`^https://static\.mercdn\.net/item/detail/orig/photos/`)

// extractSiteSpecific dispatches to the first rule whose domain substring
// matches the host. Returns false both when no rule matches and when the
// matching rule finds nothing.
func extractSiteSpecific(doc *goquery.Document, host string) (Candidate, bool) {
	for _, rule := range siteRules {
		if !strings.Contains(host, rule.domainSubstring) {
			continue
		}
		if ref := rule.extract(doc); ref != "" {
			return Candidate{URL: ref, Signal: SignalSiteSpecific}, true
		}
		// Exactly one site rule runs per page.
		return Candidate{}, false
	}
	return Candidate{}, false
}

// mercariNextData mirrors the slice of the __NEXT_DATA__ hydration payload
// that carries the item photos.
type mercariNextData struct {
	Props struct {
		PageProps struct {
			Item struct {
				Photos []string `json:"photos"`
			} `json:"item"`
		} `json:"pageProps"`
	} `json:"props"`
}

// extractMercari reads the client-side hydration payload first — Mercari
// renders item photos only through JSON on many pages — and falls back to
// DOM inspection within the same rule.
func extractMercari(doc *goquery.Document) string {
	// 1. __NEXT_DATA__ hydration JSON.
	if raw := doc.FindMatcher(selNextData).First().Text(); raw != "" {
		var nd mercariNextData
		if err := json.Unmarshal([]byte(raw), &nd); err != nil {
			slog.Debug("mercari: malformed __NEXT_DATA__ payload", "error", err)
		} else if photos := nd.Props.PageProps.Item.Photos; len(photos) > 0 && photos[0] != "" {
			return stripQuery(photos[0])
		}
	}

	// 2. Thumbnail-alt image pinned to the mercdn CDN.
	ref := ""
	doc.Find(`img[alt="のサムネイル"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if src, ok := s.Attr("src"); ok && strings.Contains(src, "static.mercdn.net") {
			ref = stripQuery(src)
			return false
		}
		return true
	})
	if ref != "" {
		return ref
	}

	// 3. Any image pointing at the original-photo CDN path.
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if src, ok := s.Attr("src"); ok && mercdnOrigPhoto.MatchString(src) {
			ref = stripQuery(src)
			return false
		}
		return true
	})
	return ref
}

// extractAmazon looks in the known main-image containers. Rejects inline
// data URIs and CAPTCHA assets, which Amazon serves into the same slots on
// challenge pages.
func extractAmazon(doc *goquery.Document) string {
	ref := ""
	doc.FindMatcher(selAmazonMain).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return true
		}
		if strings.HasPrefix(src, "data:image") || strings.Contains(strings.ToLower(src), "captcha") {
			return true
		}
		ref = stripQuery(src)
		return false
	})
	return ref
}

// extractRakuten takes the first gallery image, skipping the "now printing"
// no-image placeholder and downsized thumbnail variants (the _ex= query and
// /128x128/ path forms).
func extractRakuten(doc *goquery.Document) string {
	ref := ""
	doc.FindMatcher(selRakutenGallery).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return true
		}
		lower := strings.ToLower(src)
		if strings.Contains(lower, "now_printing") {
			return true
		}
		if strings.Contains(lower, "_ex=128x128") || strings.Contains(lower, "/128x128/") {
			return true
		}
		ref = stripQuery(src)
		return false
	})
	return ref
}
