package models

// ResolveRequest is the payload for POST /api/v1/resolve.
type ResolveRequest struct {
	// URL is the page whose representative image should be located. Required.
	URL string `json:"url" binding:"required,url"`

	// TargetWidth is the pixel width the prepared image is resized to.
	// Default: 100. Max: 2000.
	TargetWidth int `json:"target_width,omitempty" binding:"omitempty,min=1,max=2000"`

	// Timeout is the maximum duration in seconds for the entire
	// resolution (fetch + extraction + image preparation).
	// Default: 60. Max: 180.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=180"`

	// SkipPrepare returns only the resolved image URL without downloading
	// and re-encoding the image itself. Default: false.
	SkipPrepare bool `json:"skip_prepare,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *ResolveRequest) Defaults() {
	if r.TargetWidth == 0 {
		r.TargetWidth = 100
	}
	if r.Timeout == 0 {
		r.Timeout = 60
	}
}
