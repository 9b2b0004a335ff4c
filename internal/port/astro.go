package port

import "context"

// UpstreamResponse is the raw reply of the astrology service.
type UpstreamResponse struct {
	Status      int
	Body        []byte
	ContentType string
}

// AstroService abstracts the external astrology computation API.
// Implementations forward a JSON body untouched and never retry.
type AstroService interface {
	// Forward POSTs body to path with the given extra headers.
	// Transport failures wrap ErrUpstreamUnavailable.
	Forward(ctx context.Context, path string, body []byte, headers map[string]string) (*UpstreamResponse, error)
}
