package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/futig/doctalk-backend/internal/config"
	"github.com/futig/doctalk-backend/internal/pkg/formatter"
	"github.com/futig/doctalk-backend/internal/telegram/handlers"
	"github.com/futig/doctalk-backend/internal/telegram/keyboard"
	"github.com/futig/doctalk-backend/internal/telegram/middleware"
	"github.com/futig/doctalk-backend/internal/telegram/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

var ErrShutdownTimeout = errors.New("shutdown timeout exceeded")

// API is the bot API surface used by the update loop
type API interface {
	handlers.BotAPI
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot represents the Telegram bot
type Bot struct {
	api         API
	cfg         *config.TelegramConfig
	handlers    map[string]handlers.Handler
	sessionUC   handlers.SessionUsecase
	sender      *handlers.MessageSender
	keyboard    *keyboard.Builder
	logger      *zap.Logger
	loggingMW   *middleware.LoggingMiddleware
	recoveryMW  *middleware.RecoveryMiddleware
	rateLimitMW *middleware.RateLimiterMiddleware
	updatesChan tgbotapi.UpdatesChannel
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// New creates a new Telegram bot around an authorized API client
func New(
	cfg *config.TelegramConfig,
	api API,
	sessionUC handlers.SessionUsecase,
	sender *handlers.MessageSender,
	logger *zap.Logger,
) *Bot {
	return &Bot{
		api:         api,
		cfg:         cfg,
		sessionUC:   sessionUC,
		sender:      sender,
		keyboard:    keyboard.NewBuilder(),
		logger:      logger,
		handlers:    make(map[string]handlers.Handler),
		stopChan:    make(chan struct{}),
		loggingMW:   middleware.NewLoggingMiddleware(logger),
		recoveryMW:  middleware.NewRecoveryMiddleware(logger, api),
		rateLimitMW: middleware.NewRateLimiterMiddleware(cfg.RateLimitPerMinute, cfg.RateLimitBurst, logger, api),
	}
}

// Start starts the bot
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("starting telegram bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.UpdateTimeout
	b.updatesChan = b.api.GetUpdatesChan(u)

	ctx = ctxzap.ToContext(ctx, b.logger)
	go b.processUpdates(ctx)

	b.logger.Info("telegram bot started successfully")
	return nil
}

// Stop stops the bot gracefully with timeout
func (b *Bot) Stop() error {
	b.logger.Info("stopping telegram bot")

	b.stopOnce.Do(func() {
		close(b.stopChan)
		b.api.StopReceivingUpdates()
		b.rateLimitMW.Close()
	})

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	shutdownTimeout := time.Duration(b.cfg.ShutdownTimeout) * time.Second
	select {
	case <-done:
		b.logger.Info("all handlers completed gracefully")
	case <-time.After(shutdownTimeout):
		b.logger.Warn("shutdown timeout exceeded, some handlers may not have completed",
			zap.Duration("timeout", shutdownTimeout),
		)
		return ErrShutdownTimeout
	}

	b.logger.Info("telegram bot stopped successfully")
	return nil
}

// processUpdates processes incoming updates
func (b *Bot) processUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			ctxzap.Info(ctx, "context cancelled, stopping update processing")
			return
		case <-b.stopChan:
			ctxzap.Info(ctx, "stop signal received, stopping update processing")
			return
		case update, ok := <-b.updatesChan:
			if !ok {
				ctxzap.Info(ctx, "updates channel closed")
				return
			}
			b.wg.Add(1)
			go func(u tgbotapi.Update) {
				defer b.wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}

// HandleUpdate runs one update through the middleware chain
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.rateLimitMW.Handle(update, func(u tgbotapi.Update) {
		b.loggingMW.Handle(u, func(u2 tgbotapi.Update) {
			b.recoveryMW.Handle(u2, func(u3 tgbotapi.Update) {
				b.route(ctx, u3)
			})
		})
	})
}

func (b *Bot) route(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallbackQuery(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	}
}

// handleMessage handles incoming messages
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	kind := handlers.HandlerKindText
	if message.Document != nil {
		kind = handlers.HandlerKindDocument
	} else if message.Text == "" {
		b.sendError(message.Chat.ID, render.MsgHelp)
		return
	}

	handler, exists := b.handlers[kind]
	if !exists {
		ctxzap.Warn(ctx, "no handler for update kind", zap.String("kind", kind))
		b.sendError(message.Chat.ID, render.ErrGeneric)
		return
	}

	msg := &handlers.Message{
		ChatID:    message.Chat.ID,
		MessageID: message.MessageID,
		Text:      message.Text,
		Caption:   message.Caption,
		Document:  message.Document,
	}
	if message.From != nil {
		msg.UserID = message.From.ID
	}

	if err := handler.Handle(ctx, msg); err != nil {
		ctxzap.Error(ctx, "handler error",
			zap.Error(err),
			zap.String("kind", kind),
			zap.Int64("chat_id", msg.ChatID),
		)
		b.sendError(message.Chat.ID, render.ErrGeneric)
	}
}

// handleCommand handles bot commands
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	command := message.Command()
	chatID := message.Chat.ID

	ctxzap.Info(ctx, "command received",
		zap.String("command", command),
		zap.Int64("chat_id", chatID),
	)

	switch command {
	case "start":
		b.send(ctx, chatID, render.MsgWelcome, nil)
	case "help":
		b.send(ctx, chatID, render.MsgHelp, nil)
	case "session":
		b.handleSessionCommand(ctx, chatID)
	case "transcript":
		b.send(ctx, chatID, render.MsgChooseFormat, b.keyboard.ExportKeyboard(formatter.NewFactory().Formats()))
	case "end":
		b.send(ctx, chatID, render.MsgConfirmEnd, b.keyboard.ConfirmEndKeyboard())
	default:
		b.sendError(chatID, render.ErrUnknownCommand)
	}
}

func (b *Bot) handleSessionCommand(ctx context.Context, chatID int64) {
	info, err := b.sessionUC.GetSession(ctx, handlers.SessionID(chatID))
	if err != nil {
		// a chat that never uploaded anything has no session yet
		b.send(ctx, chatID, render.MsgNoDocuments, nil)
		return
	}
	b.send(ctx, chatID, render.RenderSession(info), nil)
}

// handleCallbackQuery handles callback button clicks
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		b.answerCallback(query.ID, "")
		return
	}

	if _, err := keyboard.ParseCallback(query.Data); err != nil {
		ctxzap.Warn(ctx, "invalid callback data",
			zap.Error(err),
			zap.String("data", query.Data),
		)
		b.answerCallback(query.ID, "❌ Invalid data")
		return
	}

	handler, exists := b.handlers[handlers.HandlerKindCallback]
	if !exists {
		ctxzap.Warn(ctx, "callback handler not registered")
		b.answerCallback(query.ID, "❌ Not available")
		return
	}

	// answer right away so the client stops its spinner
	b.answerCallback(query.ID, "⏳ Working...")

	msg := &handlers.Message{
		ChatID:       query.Message.Chat.ID,
		MessageID:    query.Message.MessageID,
		CallbackData: query.Data,
		CallbackID:   query.ID,
	}
	if query.From != nil {
		msg.UserID = query.From.ID
	}

	if err := handler.Handle(ctx, msg); err != nil {
		ctxzap.Error(ctx, "callback handler error",
			zap.Error(err),
			zap.Int64("chat_id", msg.ChatID),
		)
		b.sendError(msg.ChatID, render.ErrGeneric)
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup interface{}) {
	if err := b.sender.Send(chatID, text, markup); err != nil {
		ctxzap.Error(ctx, "failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
		)
	}
}

// sendError sends an error message
func (b *Bot) sendError(chatID int64, text string) {
	_ = b.sender.Send(chatID, text, nil)
}

// answerCallback answers a callback query
func (b *Bot) answerCallback(callbackID string, text string) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(callback); err != nil {
		b.logger.Error("failed to answer callback",
			zap.Error(err),
			zap.String("callback_id", callbackID),
		)
	}
}

// RegisterHandler registers a handler for an update kind
func (b *Bot) RegisterHandler(handler handlers.Handler) error {
	kind := handler.Kind()
	if !handlers.IsValidKind(kind) {
		return fmt.Errorf("invalid handler kind %q", kind)
	}

	b.handlers[kind] = handler
	b.logger.Debug("handler registered", zap.String("kind", kind))
	return nil
}
