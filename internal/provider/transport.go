package provider

import (
	"net/http"
	"time"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "NotesWise-API/1.0"
)

type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, vs := range t.headers {
		if r.Header.Get(k) != "" {
			continue
		}
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	return t.base.RoundTrip(r)
}

// NewHTTPClient returns a client scoped to one provider: its own timeout and
// default headers that individual requests may override.
func NewHTTPClient(timeout time.Duration, headers map[string]string) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	h := make(http.Header, len(headers)+1)
	h.Set("User-Agent", DefaultUserAgent)
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &headerTransport{base: http.DefaultTransport, headers: h},
	}
}
