package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Min interval between any two Telegram messages to the same chat to avoid
// 429 Too Many Requests (~30/min limit).
const telegramSendInterval = 2 * time.Second

// Notifier pushes account-health alerts to a Telegram chat. A nil *Notifier
// is valid and drops all messages, so callers never need to branch.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64

	mu       sync.Mutex
	lastSend time.Time
}

// NewNotifier creates a Telegram notifier. Returns nil (a no-op notifier)
// when the token is empty or the bot cannot be reached.
func NewNotifier(token string, chatID int64) *Notifier {
	if token == "" || chatID == 0 {
		return nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		slog.Error("Failed to create telegram bot", "error", err)
		return nil
	}
	bot.Debug = false

	if _, err := bot.GetMe(); err != nil {
		slog.Error("Failed to get bot info", "error", err)
		return nil
	}

	return &Notifier{bot: bot, chatID: chatID}
}

// AccountLimited alerts that the platform zeroed the account's stake limit.
func (n *Notifier) AccountLimited(bookmaker, username string) {
	n.send(fmt.Sprintf("⚠️ %s: account %s is limited to ZERO stake", bookmaker, username))
}

// LoginFailed alerts that an account can no longer authenticate.
func (n *Notifier) LoginFailed(bookmaker, username, reason string) {
	n.send(fmt.Sprintf("🚫 %s: login failed for %s: %s", bookmaker, username, reason))
}

func (n *Notifier) send(text string) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if wait := telegramSendInterval - time.Since(n.lastSend); wait > 0 {
		time.Sleep(wait)
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		slog.Error("Failed to send telegram message", "error", err)
		return
	}
	n.lastSend = time.Now()
}
