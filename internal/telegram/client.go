// Package telegram sends a short digest of the latest stacked year to a Telegram
// chat: the Technology/Other split and the top contributors of one bucket.
//
// Messages use MarkdownV2; sending is retried with a linear backoff.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of the bot API the client needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Send delivers the digest
func (c *Client) Send(d Digest) error {
	msg := tgbotapi.NewMessage(c.chatID, formatMessage(d))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i+1 < c.maxRetries {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}
	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

func formatMessage(d Digest) string {
	var b strings.Builder
	b.WriteString("📊 *Billionaire Net Worth Digest*\n\n")

	if len(d.Shares) == 0 {
		b.WriteString(escapeMarkdownV2("No data loaded."))
		return b.String()
	}

	fmt.Fprintf(&b, "📅 Year: *%d*\n", d.Year)
	fmt.Fprintf(&b, "💰 Total: %s\n\n", escapeMarkdownV2(formatBillions(d.Total)))

	for _, s := range d.Shares {
		fmt.Fprintf(&b, "• %s: %s \\(%s\\)\n",
			escapeMarkdownV2(string(s.Category)),
			escapeMarkdownV2(formatBillions(s.Value)),
			escapeMarkdownV2(fmt.Sprintf("%.1f%%", s.Percent)))
	}

	if len(d.Top) > 0 {
		fmt.Fprintf(&b, "\n🏆 Top %s\n", escapeMarkdownV2(string(d.TopCategory)))
		for i, e := range d.Top {
			fmt.Fprintf(&b, "%d\\. %s: %s\n", i+1, escapeMarkdownV2(e.Name), escapeMarkdownV2(formatBillions(e.Metric)))
		}
	}
	return b.String()
}

func formatBillions(v float64) string {
	return fmt.Sprintf("$%.1fB", v)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
