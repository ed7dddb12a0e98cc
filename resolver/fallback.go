package resolver

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// fallbackDenylist holds substrings strongly correlated with non-content
// imagery: icons, logos, sprites, tracking pixels, ad hosts, CAPTCHA
// assets, chrome imagery, thumbnail naming conventions. Tuned empirically;
// not exhaustive.
var fallbackDenylist = []string{
	".gif", ".svg",
	"ads", "icon", "logo", "sprite", "avatar", "spinner", "loading",
	"pixel", "captcha", "banner", "nav", "rating", "button",
	"transparent", "spacer", "dummy", "favicon",
	"/thumb/", "thumbnail",
	"fls-fe.amazon", "doubleclick", "googlesyndication",
}

// fallbackBadExtensions are dynamic script endpoints masquerading as image
// sources.
var fallbackBadExtensions = []string{".php", ".aspx", ".jsp"}

const (
	// minRefLength is the minimum plausible length of an image reference.
	minRefLength = 10

	// minScoreDimension is the pixel threshold below which a declared
	// dimension contributes no size score.
	minScoreDimension = 10
)

// fallbackCandidate is one surviving inline image with its score keys.
type fallbackCandidate struct {
	ref     string
	score   int  // declared width × height, or 0 when dimensions are unusable
	goodAlt bool // secondary tiebreak: non-generic alt text
}

// extractFallback scores every inline image on the page when no structured
// signal produced a candidate. It runs last in the cascade.
func extractFallback(doc *goquery.Document, baseURL string) (Candidate, bool) {
	seen := make(map[string]struct{})
	var best *fallbackCandidate

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			// Lazily-loaded images park the real reference in data-src.
			src, ok = s.Attr("data-src")
			if !ok || src == "" {
				return
			}
		}

		abs := ResolveRef(baseURL, src)
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}

		if !passesFallbackFilters(abs) {
			return
		}

		cand := fallbackCandidate{
			ref:     stripQuery(abs),
			score:   declaredSizeScore(s),
			goodAlt: hasContentAlt(s),
		}
		if better(&cand, best) {
			c := cand
			best = &c
		}
	})

	if best == nil {
		return Candidate{}, false
	}
	return Candidate{URL: best.ref, Signal: SignalFallback}, true
}

// passesFallbackFilters rejects references that cannot plausibly be the
// page's content image.
func passesFallbackFilters(abs string) bool {
	if strings.HasPrefix(abs, "data:image") {
		return false
	}
	if len(abs) <= minRefLength {
		return false
	}
	lower := strings.ToLower(abs)
	for _, pat := range fallbackDenylist {
		if strings.Contains(lower, pat) {
			return false
		}
	}
	path := stripQuery(lower)
	for _, ext := range fallbackBadExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}
	return true
}

// declaredSizeScore is width × height when both attributes are present and
// each exceeds the minimum pixel threshold, else 0.
func declaredSizeScore(s *goquery.Selection) int {
	w := attrInt(s, "width")
	h := attrInt(s, "height")
	if w <= minScoreDimension || h <= minScoreDimension {
		return 0
	}
	return w * h
}

// hasContentAlt reports whether the image carries alternative text that
// does not look like boilerplate.
func hasContentAlt(s *goquery.Selection) bool {
	alt, ok := s.Attr("alt")
	if !ok {
		return false
	}
	alt = strings.ToLower(strings.TrimSpace(alt))
	if alt == "" {
		return false
	}
	return !strings.Contains(alt, "thumbnail") && !strings.Contains(alt, "logo")
}

// better reports whether cand beats the current best. Size score is the
// primary key, content alt the secondary; ties keep the earlier candidate.
func better(cand, best *fallbackCandidate) bool {
	if best == nil {
		return true
	}
	if cand.score != best.score {
		return cand.score > best.score
	}
	if cand.goodAlt != best.goodAlt {
		return cand.goodAlt
	}
	return false
}

func attrInt(s *goquery.Selection, name string) int {
	v, ok := s.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}
