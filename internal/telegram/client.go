// Package telegram provides a client for sending run notifications via Telegram Bot API.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/comparisonsync/internal/pipeline"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications.
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return newClient(bot, chatIDInt, maxRetries, retryDelayBase), nil
}

func newClient(bot sender, chatID int64, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a failed run notification.
func (c *Client) SendError(runErr error) error {
	return c.sendMarkdownV2(formatError(runErr))
}

// SendSummary sends the outcome of a successful run.
func (c *Client) SendSummary(res pipeline.Result, namespace, table string) error {
	return c.sendMarkdownV2(formatSummary(res, namespace, table))
}

func formatError(runErr error) string {
	text := "⚠️ *Comparison sync failed*\n"
	if stage, ok := pipeline.FailedStage(runErr); ok {
		text += fmt.Sprintf("Stage: %s\n", escapeMarkdownV2(string(stage)))
	}
	return text + fmt.Sprintf("`%s`", escapeMarkdownV2(runErr.Error()))
}

func formatSummary(res pipeline.Result, namespace, table string) string {
	var b strings.Builder
	b.WriteString("✅ *Comparison sync completed*\n\n")
	fmt.Fprintf(&b, "📊 %s rows → `%s`\n",
		escapeMarkdownV2(strconv.Itoa(res.Rows)),
		escapeMarkdownV2(namespace+"."+table))
	fmt.Fprintf(&b, "Screened: %d, quoted: %d\n", res.Screened, res.Quoted)
	fmt.Fprintf(&b, "Session: %s\n", escapeMarkdownV2(res.Session.String()))
	fmt.Fprintf(&b, "Took %s", escapeMarkdownV2(res.Duration.Round(time.Millisecond).String()))
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
