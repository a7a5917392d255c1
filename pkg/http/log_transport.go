package http

import (
	"context"
	"net/http"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// bodySizeContextKey carries the outbound payload size. Payloads themselves
// are never logged, they may hold document text.
type bodySizeContextKey struct{}

// opaquePathContextKey marks requests whose path must stay out of the logs
type opaquePathContextKey struct{}

func withOpaquePath(ctx context.Context) context.Context {
	return context.WithValue(ctx, opaquePathContextKey{}, true)
}

type logTransport struct {
	transport http.RoundTripper
}

func (t *logTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("host", req.URL.Host),
	}
	if opaque, _ := ctx.Value(opaquePathContextKey{}).(bool); !opaque {
		fields = append(fields, zap.String("path", req.URL.Path))
	}
	if size, ok := ctx.Value(bodySizeContextKey{}).(int); ok {
		fields = append(fields, zap.Int("payload_bytes", size))
	}

	ctxzap.Debug(ctx, "HTTP outbound request", fields...)

	resp, err := t.transport.RoundTrip(req)
	fields = append(fields, zap.Duration("duration", time.Since(start)))
	if err != nil {
		ctxzap.Debug(ctx, "HTTP outbound request failed", append(fields, zap.Error(err))...)
		return nil, err
	}

	ctxzap.Debug(ctx, "HTTP outbound response", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, nil
}

// WithRequestLogging wraps the HTTP transport with logging of method, URL, payload size and status.
func WithRequestLogging() HttpOpts {
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		return &logTransport{
			transport: rt,
		}
	})
}
