// Package telegram sends pool ranking digests through the Telegram Bot API.
// Messages use MarkdownV2 and delivery is retried with linear backoff.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/curator/internal/logger"
	"github.com/rewired-gh/curator/internal/models"
)

// sender is the part of the bot API the client uses to deliver messages.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// DigestFunc produces the ranked pools for an on-demand /top command.
type DigestFunc func(ctx context.Context) ([]models.ScoredPool, models.Summary, error)

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	sender         sender
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

	c, err := newClient(bot, chatID, maxRetries, retryDelayBase)
	if err != nil {
		return nil, err
	}
	c.bot = bot
	return c, nil
}

func newClient(s sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
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
		sender:         s,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Send delivers a digest of the top ranked pools
func (c *Client) Send(pools []models.ScoredPool, summary models.Summary) error {
	return c.deliver(c.chatID, formatDigest(pools, summary, time.Now().UTC()))
}

// SendError reports a failed digest cycle.
func (c *Client) SendError(err error) error {
	message := "⚠️ *Curator digest failed*\n\n" + escapeMarkdownV2(err.Error())
	return c.deliver(c.chatID, message)
}

// SendRecovery reports that digests work again after failures consecutive failures.
func (c *Client) SendRecovery(failures int) error {
	message := fmt.Sprintf("✅ *Curator digest recovered* after %d failed %s",
		failures, pluralize("cycle", failures))
	return c.deliver(c.chatID, message)
}

func (c *Client) deliver(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.sender.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// ListenForCommands answers /top and /ping in the configured chat until ctx
// is done. It is a no-op for clients without a live bot.
func (c *Client) ListenForCommands(ctx context.Context, digest DigestFunc) {
	if c.bot == nil {
		return
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		defer c.bot.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				c.handleUpdate(ctx, update, digest)
			}
		}
	}()
	logger.Info("Listening for Telegram commands")
}

func (c *Client) handleUpdate(ctx context.Context, update tgbotapi.Update, digest DigestFunc) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	if update.Message.Chat.ID != c.chatID {
		logger.Debug("Ignoring command from chat %d", update.Message.Chat.ID)
		return
	}

	var reply string
	switch update.Message.Command() {
	case "ping":
		reply = "pong"
	case "top":
		pools, summary, err := digest(ctx)
		if err != nil {
			reply = escapeMarkdownV2("Failed to score pools: " + err.Error())
			break
		}
		reply = formatDigest(pools, summary, time.Now().UTC())
	default:
		return
	}

	if err := c.deliver(update.Message.Chat.ID, reply); err != nil {
		logger.Warn("Failed to answer /%s: %v", update.Message.Command(), err)
	}
}

// formatDigest renders ranked pools as a MarkdownV2 message
func formatDigest(pools []models.ScoredPool, summary models.Summary, at time.Time) string {
	var b strings.Builder
	b.WriteString("🛡 *Top Pools by Security Score*\n\n")
	b.WriteString(fmt.Sprintf("📅 %s\n", escapeMarkdownV2(at.Format("2006-01-02 15:04 MST"))))
	if len(summary.Tokens) > 0 {
		b.WriteString(fmt.Sprintf("🔎 Tokens: %s\n", escapeMarkdownV2(strings.Join(summary.Tokens, ", "))))
	}
	b.WriteString(fmt.Sprintf("📊 Showing %d of %d pools across %d %s\n\n",
		summary.Returned, summary.Total, summary.Protocols, pluralize("protocol", summary.Protocols)))

	if len(pools) == 0 {
		b.WriteString("No pools matched\\.\n")
		return b.String()
	}

	for i, pool := range pools {
		project := pool.Project
		if pool.ProtocolMeta != nil && pool.ProtocolMeta.Name != "" {
			project = pool.ProtocolMeta.Name
		}

		b.WriteString(fmt.Sprintf("%d\\. *%s* on %s\n",
			i+1, escapeMarkdownV2(pool.Symbol), escapeMarkdownV2(project)))
		b.WriteString(fmt.Sprintf("   Score: *%s* \\(%s\\)\n",
			escapeMarkdownV2(strconv.FormatFloat(pool.SecurityScore, 'f', 2, 64)),
			escapeMarkdownV2(pool.SafetyLevel)))

		details := "   TVL: " + escapeMarkdownV2(formatUSD(pool.TVLUsd))
		if pool.APY != nil {
			details += " · APY: " + escapeMarkdownV2(fmt.Sprintf("%.2f%%", *pool.APY))
		}
		if pool.Chain != "" {
			details += " · " + escapeMarkdownV2(pool.Chain)
		}
		b.WriteString(details + "\n\n")
	}

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, char := range text {
		switch char {
		case '\\', '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// formatUSD abbreviates a dollar amount, e.g. 1.2B or 350.0M.
func formatUSD(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("$%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("$%.1fK", v/1e3)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

func pluralize(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
