package resolver

// Signal records which cascade stage produced a candidate. Used only for
// diagnostics; the cascade's fixed ordering is the actual priority.
type Signal string

const (
	SignalSiteSpecific   Signal = "site_specific"
	SignalMetadata       Signal = "metadata"
	SignalStructuredData Signal = "structured_data"
	SignalFallback       Signal = "fallback"
)

// Candidate is an image reference produced by one extraction stage.
// The URL may still be relative; the cascade converts it to an absolute
// URL before returning it.
type Candidate struct {
	URL    string
	Signal Signal
}
