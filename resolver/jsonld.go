package resolver

import (
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/PuerkitoBio/goquery"
)

// maxJSONDepth bounds the recursive structural search so a pathological
// document cannot blow the stack.
const maxJSONDepth = 32

// extractStructuredData searches every JSON-LD island on the page for an
// image reference. Blocks that fail to parse are skipped, never aborting
// the whole page.
func extractStructuredData(doc *goquery.Document) (Candidate, bool) {
	found := ""
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := s.Text()
		if raw == "" {
			return true
		}
		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			slog.Debug("structured data: skipping malformed JSON-LD block", "error", err)
			return true
		}
		if img := findImageInJSON(data, 0); img != "" {
			found = img
			return false
		}
		return true
	})
	if found == "" {
		return Candidate{}, false
	}
	return Candidate{URL: found, Signal: SignalStructuredData}, true
}

// findImageInJSON walks a decoded JSON value depth-first and returns the
// first image reference it encounters.
//
// On an object: an "image" key wins — a string value is used directly, a
// list yields its first usable element (string, or object with "url"), an
// object yields its "url" field. Without an "image" key, an "@graph" list
// is searched next, then every remaining value. Lists are searched in
// order. First match wins at every level.
func findImageInJSON(node any, depth int) string {
	if depth > maxJSONDepth {
		return ""
	}

	switch v := node.(type) {
	case map[string]any:
		if img, ok := v["image"]; ok {
			if ref := imageValue(img); ref != "" {
				return ref
			}
		}
		if graph, ok := v["@graph"].([]any); ok {
			for _, item := range graph {
				if ref := findImageInJSON(item, depth+1); ref != "" {
					return ref
				}
			}
		}
		// Go map iteration order is randomized; walk keys sorted so the
		// same document always yields the same reference.
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if ref := findImageInJSON(v[k], depth+1); ref != "" {
				return ref
			}
		}
	case []any:
		for _, item := range v {
			if ref := findImageInJSON(item, depth+1); ref != "" {
				return ref
			}
		}
	}
	return ""
}

// imageValue interprets the value of an "image" property.
func imageValue(img any) string {
	ref := ""
	switch v := img.(type) {
	case string:
		ref = v
	case []any:
		if len(v) == 0 {
			return ""
		}
		switch first := v[0].(type) {
		case string:
			ref = first
		case map[string]any:
			if u, ok := first["url"].(string); ok {
				ref = u
			}
		}
	case map[string]any:
		if u, ok := v["url"].(string); ok {
			ref = u
		}
	}
	if !usableRef(ref) {
		return ""
	}
	return ref
}
