package builder

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/futig/doctalk-backend/internal/telegram"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// App runs the front doors of one process over a shared Core. Either front
// door may be absent.
type App struct {
	server *http.Server
	bot    telegram.Bot
	core   *Core
	logger *zap.Logger
}

// Run serves until SIGINT/SIGTERM or a front door fails, then shuts down
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)

	if a.server != nil {
		go func() {
			a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	if a.bot != nil {
		if err := a.bot.Start(ctx); err != nil {
			a.logger.Error("Telegram bot failed to start", zap.Error(err))
			return errors.Join(err, a.shutdown())
		}
	}

	var runErr error
	select {
	case runErr = <-errChan:
		a.logger.Error("Server error", zap.Error(runErr))
	case <-ctx.Done():
		a.logger.Info("Received shutdown signal")
	}

	return errors.Join(runErr, a.shutdown())
}

// shutdown stops accepting work, drains in-flight requests and updates, then
// ends every session
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error

	if a.server != nil {
		a.logger.Info("Shutting down HTTP server")
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("Server shutdown error", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if a.bot != nil {
		if err := a.bot.Stop(); err != nil {
			a.logger.Error("Telegram bot shutdown error", zap.Error(err))
			errs = append(errs, err)
		}
	}

	a.logger.Info("Ending sessions", zap.Int("active", a.core.Usecase.SessionCount()))
	a.core.Close()

	a.logger.Info("Application stopped")
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
