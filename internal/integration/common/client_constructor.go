// Package common builds the outbound HTTP connectors shared by the model
// providers and the webhook sink.
package common

import (
	"github.com/futig/doctalk-backend/internal/config"
	pkgHTTP "github.com/futig/doctalk-backend/pkg/http"
	"go.uber.org/zap"
)

const userAgent = "doctalk-backend"

// NewBaseConnector applies the timeouts, credentials and throttling of cfg.
// extra options are applied last and may add provider specific headers.
func NewBaseConnector(cfg config.HTTPClientConfig, logger *zap.Logger, extra ...pkgHTTP.HttpOpts) *pkgHTTP.Connector {
	opts := []pkgHTTP.HttpOpts{
		pkgHTTP.WithRequestTimeout(cfg.RequestTimeout),
		pkgHTTP.WithDialTimeout(cfg.ConnTimeout),
		pkgHTTP.WithKeepAlive(cfg.KeepAlive),
		pkgHTTP.WithIdleConnTimeout(cfg.IdleConnTimeout),
		pkgHTTP.WithResponseHeaderTimeout(cfg.ResponseHeaderTimeout),
		pkgHTTP.WithRequestLogging(),
		pkgHTTP.WithUserAgent(userAgent),
		pkgHTTP.WithAuthToken(cfg.Token),
		pkgHTTP.WithRateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
	}
	opts = append(opts, extra...)

	return pkgHTTP.NewConnector(&pkgHTTP.ConnectorConfig{
		Logger:  logger,
		BaseURL: cfg.Url,
	}, opts...)
}
