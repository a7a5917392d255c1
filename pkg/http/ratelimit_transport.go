package http

import (
	"net/http"

	"golang.org/x/time/rate"
)

type rateLimitTransport struct {
	limiter   *rate.Limiter
	transport http.RoundTripper
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.transport.RoundTrip(req)
}

// WithRateLimit throttles outbound requests to perSecond with the given burst.
// A non-positive rate disables throttling.
func WithRateLimit(perSecond float64, burst int) HttpOpts {
	if perSecond <= 0 {
		return func(*clientConfig) {}
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		return &rateLimitTransport{
			limiter:   limiter,
			transport: rt,
		}
	})
}
