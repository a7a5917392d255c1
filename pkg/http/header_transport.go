package http

import "net/http"

// headerTransport sets fixed headers on every request of a client
type headerTransport struct {
	headers   map[string]string
	transport http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqCopy := req.Clone(req.Context())
	for key, value := range t.headers {
		if reqCopy.Header.Get(key) == "" {
			reqCopy.Header.Set(key, value)
		}
	}
	return t.transport.RoundTrip(reqCopy)
}

// WithStaticHeader sets key on every request unless the request already has
// it. An empty value is a no-op so optional credentials can be passed as is.
func WithStaticHeader(key, value string) HttpOpts {
	if value == "" {
		return func(*clientConfig) {}
	}
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		return &headerTransport{
			headers:   map[string]string{key: value},
			transport: rt,
		}
	})
}

// WithAuthToken sends token as a bearer credential
func WithAuthToken(token string) HttpOpts {
	if token == "" {
		return func(*clientConfig) {}
	}
	return WithStaticHeader("Authorization", "Bearer "+token)
}

// WithUserAgent identifies the service to upstream APIs
func WithUserAgent(agent string) HttpOpts {
	return WithStaticHeader("User-Agent", agent)
}
