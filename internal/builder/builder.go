package builder

import (
	"fmt"
	"net/http"
	"time"

	"github.com/futig/doctalk-backend/internal/api"
	sessionapi "github.com/futig/doctalk-backend/internal/api/session"
	"github.com/futig/doctalk-backend/internal/config"
	"github.com/futig/doctalk-backend/internal/integration/callback"
	"github.com/futig/doctalk-backend/internal/integration/extractor"
	"github.com/futig/doctalk-backend/internal/integration/llm"
	"github.com/futig/doctalk-backend/internal/pkg/events"
	"github.com/futig/doctalk-backend/internal/pkg/formatter"
	"github.com/futig/doctalk-backend/internal/pkg/logger"
	pkgRetry "github.com/futig/doctalk-backend/internal/pkg/retry"
	"github.com/futig/doctalk-backend/internal/pkg/validator"
	"github.com/futig/doctalk-backend/internal/rag/chunker"
	"github.com/futig/doctalk-backend/internal/rag/guardrail"
	"github.com/futig/doctalk-backend/internal/rag/index"
	"github.com/futig/doctalk-backend/internal/rag/resolver"
	"github.com/futig/doctalk-backend/internal/repository"
	"github.com/futig/doctalk-backend/internal/telegram"
	"github.com/futig/doctalk-backend/internal/usecase/session"
	"go.uber.org/zap"
)

// Core is the document QA engine shared by the HTTP API, the bot and the CLI
type Core struct {
	Config   *config.Config
	Logger   *zap.Logger
	Index    *index.Store
	Sessions *repository.SessionMemory
	Usecase  *session.SessionUsecase
	events   *callback.Connector
}

// Close ends all sessions and flushes pending webhook events
func (c *Core) Close() {
	c.Sessions.Close()
	if c.events != nil {
		c.events.Close()
	}
}

// Setup loads the configuration for an environment and builds its logger
func Setup(environment string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(environment)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		return nil, nil, fmt.Errorf("setup logger: %w", err)
	}

	return cfg, log, nil
}

// BuildCore wires the provider, index, session store and pipeline stages
func BuildCore(cfg *config.Config, logger *zap.Logger) (*Core, error) {
	provider, err := llm.NewProvider(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup provider: %w", err)
	}
	logger.Info("Model provider initialized",
		zap.String("provider", provider.Name()),
		zap.Int("dimension", provider.Dimension()),
	)

	metric, err := index.ParseMetric(cfg.RAGCfg.Similarity)
	if err != nil {
		return nil, err
	}
	store := index.New(metric, provider.Dimension())
	sessions := repository.NewSessionMemory(store, cfg.SessionCfg.TTL, cfg.SessionCfg.CleanupInterval)
	logger.Info("Session store initialized",
		zap.String("similarity", string(metric)),
		zap.Int("dimension", store.Dimension()),
		zap.Duration("ttl", cfg.SessionCfg.TTL),
	)

	setupDOCXExport(cfg, logger)

	sink := events.Multi{events.NewLogSink(logger)}
	var eventsConnector *callback.Connector
	if cfg.EventsCfg.Enabled {
		eventsConnector = callback.NewConnector(cfg.EventsCfg, logger)
		sink = append(sink, eventsConnector)
		logger.Info("Webhook event sink enabled", zap.String("url", cfg.EventsCfg.Url))
	}

	classifier := guardrail.New(cfg.GuardrailCfg.Markers)
	overrides := resolver.New(resolver.Config{
		OverrideCues:       cfg.GuardrailCfg.OverrideCues,
		AuthoritativeTypes: cfg.GuardrailCfg.AuthoritativeTypes,
		MinSharedTerms:     cfg.RAGCfg.MinSharedTerms,
	})

	uc := session.NewUsecase(
		sessions,
		store,
		provider,
		extractor.New(logger),
		chunker.New(
			chunker.WithChunkSize(cfg.RAGCfg.ChunkSize),
			chunker.WithOverlap(cfg.RAGCfg.ChunkOverlap),
		),
		classifier,
		overrides,
		sink,
		session.Config{
			Retry:            providerRetry(cfg),
			TopK:             cfg.RAGCfg.TopK,
			MinRelevance:     cfg.RAGCfg.MinRelevance,
			MaxContextTokens: cfg.RAGCfg.MaxContextTokens,
		},
		logger,
	)
	logger.Info("Use cases initialized",
		zap.Int("markers", len(classifier.Markers())),
		zap.Int("top_k", cfg.RAGCfg.TopK),
	)

	return &Core{
		Config:   cfg,
		Logger:   logger,
		Index:    store,
		Sessions: sessions,
		Usecase:  uc,
		events:   eventsConnector,
	}, nil
}

// Build creates the HTTP application for an environment
func Build(environment string) (*App, error) {
	cfg, logger, err := Setup(environment)
	if err != nil {
		return nil, err
	}

	logger.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.String("server_addr", cfg.ServerAddr),
	)

	core, err := BuildCore(cfg, logger)
	if err != nil {
		return nil, err
	}

	fileValidator := validator.NewFileValidator(cfg.FileUploadCfg)
	sessionHandler := sessionapi.NewHandler(core.Usecase, fileValidator, cfg.FileUploadCfg.MaxUploadSize)
	logger.Info("API handlers initialized")

	router := api.SetupRouter(cfg, sessionHandler, core.Usecase.SessionCount, logger)
	logger.Info("HTTP router configured")

	// uploads and generation can take a while, the router enforces its own timeout
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 6 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	app := &App{
		server: server,
		core:   core,
		logger: logger,
	}

	if cfg.TelegramCfg.Embedded && cfg.TelegramCfg.BotToken != "" {
		bot, err := telegram.NewBot(cfg, core.Usecase, logger)
		if err != nil {
			core.Close()
			return nil, fmt.Errorf("initialize telegram bot: %w", err)
		}
		app.bot = bot
		logger.Info("Telegram bot shares the API sessions")
	}

	logger.Info("Application built successfully",
		zap.String("environment", cfg.Environment),
		zap.Bool("telegram", app.bot != nil),
	)

	return app, nil
}

// BuildTelegramBot creates an application that only runs the Telegram bot
func BuildTelegramBot(environment string) (*App, error) {
	cfg, logger, err := Setup(environment)
	if err != nil {
		return nil, err
	}
	if cfg.TelegramCfg.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	logger.Info("Building Telegram bot",
		zap.String("environment", cfg.Environment),
	)

	core, err := BuildCore(cfg, logger)
	if err != nil {
		return nil, err
	}

	bot, err := telegram.NewBot(cfg, core.Usecase, logger)
	if err != nil {
		core.Close()
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	logger.Info("Telegram bot built successfully")

	return &App{
		bot:    bot,
		core:   core,
		logger: logger,
	}, nil
}

// providerRetry picks the retry policy of the chat provider
func providerRetry(cfg *config.Config) pkgRetry.RetryConfig {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI, config.ProviderPerplexity:
		return cfg.OpenAICfg.Retry
	case config.ProviderOllama:
		return cfg.OllamaCfg.Retry
	case config.ProviderGemini:
		return cfg.GeminiCfg.Retry
	default:
		return *pkgRetry.DefaultRetryConfig()
	}
}

// setupDOCXExport activates the unioffice license DOCX transcripts need.
// Without one the other export formats keep working.
func setupDOCXExport(cfg *config.Config, logger *zap.Logger) {
	if cfg.UnidocCfg.LicenseAPIKey == "" {
		logger.Info("DOCX transcript export disabled, UNIDOC_LICENSE_API_KEY is not set")
		return
	}
	if err := formatter.EnableDOCX(cfg.UnidocCfg.LicenseAPIKey); err != nil {
		logger.Warn("DOCX transcript export disabled", zap.Error(err))
		return
	}
	logger.Info("DOCX transcript export enabled")
}
