package middleware

import (
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	warningInterval   = 30 * time.Second
	inactiveThreshold = time.Hour
	cleanupInterval   = 10 * time.Minute
)

// Sender is the part of the bot API used to notify users
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// userLimit tracks rate limit state for a single user
type userLimit struct {
	limiter       *rate.Limiter
	lastSeen      time.Time
	warningsSent  int
	lastWarningAt time.Time
}

// RateLimiterMiddleware limits updates per user with a token bucket
type RateLimiterMiddleware struct {
	mu     sync.Mutex
	limits map[int64]*userLimit
	every  rate.Limit
	burst  int
	now    func() time.Time
	logger *zap.Logger
	api    Sender
	stop   chan struct{}
	once   sync.Once
}

// NewRateLimiterMiddleware creates a new rate limiter middleware
func NewRateLimiterMiddleware(requestsPerMinute, burstSize int, logger *zap.Logger, api Sender) *RateLimiterMiddleware {
	if burstSize < 1 {
		burstSize = 1
	}

	rl := &RateLimiterMiddleware{
		limits: make(map[int64]*userLimit),
		every:  rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:  burstSize,
		now:    time.Now,
		logger: logger,
		api:    api,
		stop:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Handle processes the update through rate limiting
func (rl *RateLimiterMiddleware) Handle(update tgbotapi.Update, next func(tgbotapi.Update)) {
	userID, chatID, ok := updateIDs(update)
	if !ok {
		next(update)
		return
	}

	if !rl.allow(userID, chatID) {
		rl.logger.Warn("rate limit exceeded",
			zap.Int64("user_id", userID),
			zap.Int64("chat_id", chatID),
		)
		return
	}

	next(update)
}

// Close stops the cleanup goroutine
func (rl *RateLimiterMiddleware) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiterMiddleware) allow(userID, chatID int64) bool {
	now := rl.now()

	rl.mu.Lock()
	limit, exists := rl.limits[userID]
	if !exists {
		limit = &userLimit{limiter: rate.NewLimiter(rl.every, rl.burst)}
		rl.limits[userID] = limit
	}
	limit.lastSeen = now

	if limit.limiter.AllowN(now, 1) {
		limit.warningsSent = 0
		rl.mu.Unlock()
		return true
	}

	warn := now.Sub(limit.lastWarningAt) > warningInterval
	if warn {
		limit.warningsSent++
		limit.lastWarningAt = now
	}
	count := limit.warningsSent
	rl.mu.Unlock()

	if warn {
		rl.sendWarning(chatID, count)
	}
	return false
}

func (rl *RateLimiterMiddleware) sendWarning(chatID int64, warningCount int) {
	var text string
	switch {
	case warningCount == 1:
		text = "⚠️ Too many requests. Please wait a moment."
	case warningCount == 2:
		text = "⚠️ Rate limit exceeded. Wait about 30 seconds before trying again."
	default:
		text = "🛑 You are sending requests too often. Please wait a minute."
	}

	if _, err := rl.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		rl.logger.Error("failed to send rate limit warning",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
		)
	}
}

func (rl *RateLimiterMiddleware) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup forgets users that have been quiet for an hour
func (rl *RateLimiterMiddleware) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for userID, limit := range rl.limits {
		if now.Sub(limit.lastSeen) > inactiveThreshold {
			delete(rl.limits, userID)
			rl.logger.Debug("cleaned up inactive user from rate limiter",
				zap.Int64("user_id", userID),
			)
		}
	}
}

func updateIDs(update tgbotapi.Update) (userID, chatID int64, ok bool) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, update.Message.Chat.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		return update.CallbackQuery.From.ID, update.CallbackQuery.Message.Chat.ID, true
	default:
		return 0, 0, false
	}
}
