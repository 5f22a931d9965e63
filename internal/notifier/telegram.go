package notifier

import (
	"fmt"

	"helpboard_miniapp/internal/model"
	"helpboard_miniapp/pkg/logger"
	"go.uber.org/zap"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type TelegramConfig struct {
	BotToken string
	Debug    bool
}

// TelegramNotifier sends direct messages through the bot. Every send runs on
// its own goroutine; the caller never waits on the Telegram API.
type TelegramNotifier struct {
	bot *tgbotapi.BotAPI
}

func NewTelegramNotifier(config TelegramConfig) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	bot.Debug = config.Debug

	return &TelegramNotifier{bot: bot}, nil
}

func (n *TelegramNotifier) send(chatID int64, text string) {
	go func() {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.bot.Send(msg); err != nil {
			logger.Logger().Warn("failed to send telegram notification",
				zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}()
}

func (n *TelegramNotifier) RequestAccepted(req *model.HelpRequest) {
	if req.AcceptedBy == nil {
		return
	}
	n.send(req.RequesterID,
		fmt.Sprintf("A helper accepted your request \"%s\".", req.Title))
}

func (n *TelegramNotifier) RequestCompleted(req *model.HelpRequest, pointsAwarded int) {
	if req.AcceptedBy == nil {
		return
	}
	n.send(*req.AcceptedBy,
		fmt.Sprintf("Request \"%s\" confirmed complete. You earned %d points!", req.Title, pointsAwarded))
}

func (n *TelegramNotifier) BadgeAwarded(userID int64, badge model.Badge) {
	n.send(userID, fmt.Sprintf("New badge unlocked: %s", badge.Name))
}
