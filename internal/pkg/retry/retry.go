package retry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	pkghttp "github.com/futig/doctalk-backend/pkg/http"
)

const (
	defaultAttempts = 3
	defaultMaxDelay = 2 * time.Second
	defaultDelay    = 100 * time.Millisecond
)

type RetryConfig struct {
	Attempts uint          `env:"ATTEMPTS" envDefault:"3"`
	Delay    time.Duration `env:"DELAY" envDefault:"200ms"`
	MaxDelay time.Duration `env:"MAX_DELAY" envDefault:"2s"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"0s"` // per attempt, 0 disables
}

func (rc *RetryConfig) ToRetryOptions() []retry.Option {
	return []retry.Option{
		retry.Attempts(rc.Attempts),
		retry.MaxDelay(rc.MaxDelay),
		retry.Delay(rc.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsTransient),
	}
}

// FillDefaults replaces zero values with package defaults
func (rc *RetryConfig) FillDefaults() {
	if rc.Attempts == 0 {
		rc.Attempts = defaultAttempts
	}
	if rc.Delay == 0 {
		rc.Delay = defaultDelay
	}
	if rc.MaxDelay == 0 {
		rc.MaxDelay = defaultMaxDelay
	}
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		Attempts: defaultAttempts,
		Delay:    defaultDelay,
		MaxDelay: defaultMaxDelay,
	}
}

// Do runs fn until it succeeds, fails with a permanent error, the attempts
// are exhausted or ctx is done
func Do[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg.FillDefaults()

	opts := append(cfg.ToRetryOptions(), retry.Context(ctx))

	return retry.DoWithData(func() (T, error) {
		attemptCtx := ctx
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}
		return fn(attemptCtx)
	}, opts...)
}

// IsTransient reports whether an outbound call error is worth retrying:
// network failures, 429 and 5xx responses
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr *pkghttp.NetworkError
	if errors.As(err, &netErr) {
		return true
	}

	var httpErr *pkghttp.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= http.StatusInternalServerError
	}

	return errors.Is(err, context.DeadlineExceeded)
}
