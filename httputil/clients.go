package httputil

import (
	"net/http"
	"time"
)

// Clients bundles the two HTTP clients the pipeline uses. The provider
// client carries the request timeout from config; the media client gets a
// longer one because asset downloads are larger and less latency sensitive.
type Clients struct {
	Provider *http.Client
	Media    *http.Client
}

func NewClients(providerTimeout time.Duration) *Clients {
	if providerTimeout <= 0 {
		providerTimeout = 30 * time.Second
	}

	return &Clients{
		Provider: &http.Client{Timeout: providerTimeout},
		Media: &http.Client{
			Timeout: 60 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}
