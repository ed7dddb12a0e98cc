package models

// ResolveResponse is the body for POST /api/v1/resolve.
type ResolveResponse struct {
	Success bool `json:"success"`

	// ImageURL is the resolved absolute image URL; empty when no image
	// was found on the page.
	ImageURL string `json:"image_url,omitempty"`

	// FinalURL is the post-redirect page URL the image was resolved against.
	FinalURL string `json:"final_url,omitempty"`

	// Strategy records which fetch path produced the page: "static" or "rendered".
	Strategy string `json:"strategy,omitempty"`

	// Image carries the prepared image when preparation was requested
	// and succeeded.
	Image *PreparedImagePayload `json:"image,omitempty"`

	Error  *ErrorDetail `json:"error,omitempty"`
	Timing TimingInfo   `json:"timing"`
}

// PreparedImagePayload is the API representation of a prepared image.
type PreparedImagePayload struct {
	// Data is the base64-encoded re-encoded image stream.
	Data string `json:"data"`

	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// TimingInfo breaks down where the request spent its time.
type TimingInfo struct {
	TotalMs   int64 `json:"total_ms"`
	FetchMs   int64 `json:"fetch_ms,omitempty"`
	PrepareMs int64 `json:"prepare_ms,omitempty"`
}

// HealthResponse is the body for GET /api/v1/health.
type HealthResponse struct {
	Status        string `json:"status"`
	RendererAlive bool   `json:"renderer_alive"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
