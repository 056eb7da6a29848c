package types

// ResponseMeta contains non-blocking metadata returned with API responses.
// Warnings surface degraded conditions, such as assessments computed from
// partial observations, without failing the request.
type ResponseMeta struct {
	Warnings []string `json:"warnings,omitempty"`
}
