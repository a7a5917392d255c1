package handlers

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// chatActionInterval stays below the 5 second lifetime of a chat action on
// the client
const chatActionInterval = 4 * time.Second

// showChatAction shows action ("typing", "upload_document") in the chat until
// the returned stop func is called or ctx is done. stop waits for the
// refresher to exit and is safe to call more than once.
func showChatAction(ctx context.Context, api BotAPI, chatID int64, action string, logger *zap.Logger) (stop func()) {
	send := func() {
		if _, err := api.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
			logger.Warn("failed to send chat action",
				zap.Error(err),
				zap.Int64("chat_id", chatID),
				zap.String("action", action),
			)
		}
	}
	send()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(chatActionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				send()
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}
