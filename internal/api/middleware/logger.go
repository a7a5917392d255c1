package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// quietPaths are polled often and only logged at debug level
var quietPaths = map[string]bool{
	"/health": true,
}

// Logger puts a request scoped logger into the context and logs one line per
// request. Server errors log at error level and client errors at warn.
func Logger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLogger := logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
			ctx := ctxzap.ToContext(r.Context(), reqLogger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			if ce := reqLogger.Check(requestLevel(r.URL.Path, status), "HTTP request handled"); ce != nil {
				ce.Write(
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Int64("duration_ms", time.Since(start).Milliseconds()),
					zap.String("remote_addr", r.RemoteAddr),
				)
			}
		})
	}
}

func requestLevel(path string, status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	case quietPaths[path]:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
