package callback

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/futig/doctalk-backend/internal/config"
	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/futig/doctalk-backend/internal/integration/common"
	pkgRetry "github.com/futig/doctalk-backend/internal/pkg/retry"
	pkghttp "github.com/futig/doctalk-backend/pkg/http"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Connector posts events to a webhook
type Connector struct {
	config    config.EventsConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
	wg        sync.WaitGroup
}

func NewConnector(
	cfg config.EventsConfig,
	logger *zap.Logger,
) *Connector {
	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		config:    cfg,
		logger:    logger,
	}
}

// Emit sends the event in the background. Delivery is best effort, failures
// are only logged.
func (c *Connector) Emit(ctx context.Context, event entity.Event) {
	ctx = context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Send(ctx, &event); err != nil {
			ctxzap.Warn(ctx, "failed to deliver event", zap.String("event_type", string(event.Event)), zap.Error(err))
		}
	}()
}

func (c *Connector) Send(ctx context.Context, event *entity.Event) error {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	requestID := uuid.NewString()

	ctxzap.Debug(ctx, "sending event",
		zap.String("event_type", string(event.Event)),
		zap.String("request_id", requestID),
		zap.String("timestamp", event.Timestamp),
	)

	opts := []pkghttp.RequestOpt{
		pkghttp.WithHeader("X-Request-ID", requestID),
		pkghttp.WithHeader("X-Event-Type", string(event.Event)),
	}

	_, err := pkgRetry.Do(ctx, c.config.Retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.connector.DoRequest(ctx, http.MethodPost, "", event, nil, opts...)
	})
	if err != nil {
		return fmt.Errorf("failed to send event, event_type: %s, error: %w", string(event.Event), err)
	}

	ctxzap.Debug(ctx, "event sent",
		zap.String("event_type", string(event.Event)),
		zap.String("request_id", requestID),
	)
	return nil
}

// Close waits for in-flight deliveries
func (c *Connector) Close() {
	c.wg.Wait()
}
