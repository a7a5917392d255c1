package telegram

import (
	"context"
	"fmt"

	"github.com/futig/doctalk-backend/internal/config"
	pkgRetry "github.com/futig/doctalk-backend/internal/pkg/retry"
	"github.com/futig/doctalk-backend/internal/pkg/validator"
	"github.com/futig/doctalk-backend/internal/telegram/bot"
	"github.com/futig/doctalk-backend/internal/telegram/handlers"
	pkghttp "github.com/futig/doctalk-backend/pkg/http"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Bot is the main telegram bot interface
type Bot interface {
	Start(ctx context.Context) error
	Stop() error
}

// NewBot authorizes against the Bot API and wires all handlers
func NewBot(cfg *config.Config, sessionUC handlers.SessionUsecase, logger *zap.Logger) (Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramCfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}

	logger.Info("telegram bot authorized",
		zap.String("username", api.Self.UserName),
		zap.Int64("id", api.Self.ID),
	)

	downloader := pkghttp.NewConnector(
		&pkghttp.ConnectorConfig{Logger: logger},
		pkghttp.WithRequestTimeout(cfg.TelegramCfg.DownloadTimeout),
	)

	b, err := Assemble(cfg, api, downloader, sessionUC, logger)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Assemble builds the bot around an API client and registers its handlers
func Assemble(
	cfg *config.Config,
	api bot.API,
	downloader handlers.Downloader,
	sessionUC handlers.SessionUsecase,
	logger *zap.Logger,
) (*bot.Bot, error) {
	retry := *pkgRetry.DefaultRetryConfig()
	sender := handlers.NewMessageSender(api, retry, logger)
	fileValidator := validator.NewFileValidator(cfg.FileUploadCfg)

	b := bot.New(&cfg.TelegramCfg, api, sessionUC, sender, logger)

	registered := []handlers.Handler{
		handlers.NewDocumentHandler(api, sender, sessionUC, downloader, fileValidator, retry, cfg.FileUploadCfg.MaxFileSize, logger),
		handlers.NewQuestionHandler(api, sender, sessionUC, logger),
		handlers.NewCallbackHandler(api, sender, sessionUC, logger),
	}
	for _, h := range registered {
		if err := b.RegisterHandler(h); err != nil {
			return nil, err
		}
	}

	logger.Info("telegram bot initialized successfully",
		zap.Int("handler_count", len(registered)),
	)

	return b, nil
}
