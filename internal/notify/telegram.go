// Package notify delivers execution outcomes to Telegram, or to the log when
// Telegram is not configured.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/betbot/golighter/internal/domain"
	"github.com/betbot/golighter/internal/ports"
	"github.com/betbot/golighter/pkg/config"
)

var log = logrus.WithField("component", "notify")

// markdownEscaper covers the characters that break Telegram's Markdown parse
// mode. Dots, hyphens and parentheses stay readable unescaped.
var markdownEscaper = strings.NewReplacer(
	"_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`,
	"+", `\+`, "=", `\=`, "|", `\|`, "{", `\{`,
	"}", `\}`, "!", `\!`,
)

func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

// TelegramNotifier posts formatted outcome messages to a Telegram group.
// Sends are fire-and-forget; a notification failure never affects the
// execution result.
type TelegramNotifier struct {
	client   *resty.Client
	chatID   string
	threadID int
}

var _ ports.Notifier = (*TelegramNotifier)(nil)

func NewTelegram(cfg config.TelegramConfig) *TelegramNotifier {
	client := resty.New().
		SetBaseURL("https://api.telegram.org/bot" + cfg.BotAPIKey).
		SetTimeout(10 * time.Second)
	return &TelegramNotifier{
		client:   client,
		chatID:   cfg.GroupID,
		threadID: cfg.ThreadID,
	}
}

func (n *TelegramNotifier) NotifyOutcome(outcome *domain.ExecutionOutcome) {
	go n.send(formatOutcome(outcome))
}

func (n *TelegramNotifier) NotifySystem(title, message string) {
	go n.send(fmt.Sprintf("*%s*\n%s", escapeMarkdown(title), escapeMarkdown(message)))
}

func (n *TelegramNotifier) send(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payload := map[string]any{
		"chat_id":    n.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	if n.threadID != 0 {
		payload["message_thread_id"] = n.threadID
	}
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/sendMessage")
	if err != nil {
		log.Warnf("telegram send failed: %v", err)
		return
	}
	if !resp.IsSuccess() {
		log.Warnf("telegram api error: %d %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}
}

func formatOutcome(o *domain.ExecutionOutcome) string {
	var b strings.Builder
	switch o.Result {
	case domain.ResultCompleted:
		if o.Reducing {
			b.WriteString("*Order Closed/Reduced*\n")
		} else {
			b.WriteString("*Order Opened*\n")
		}
	case domain.ResultRejected:
		b.WriteString("*Order Rejected*\n")
	case domain.ResultCanceled:
		b.WriteString("*Order Canceled*\n")
	default:
		b.WriteString("*Order Failed*\n")
	}
	fmt.Fprintf(&b, "Time: %s\n", o.FinishedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Account: %d\n", o.AccountIndex)
	fmt.Fprintf(&b, "Market: %s (ID: %d)\n", escapeMarkdown(o.Symbol), o.MarketID)
	if o.Result == domain.ResultCompleted {
		fmt.Fprintf(&b, "Amount: %.6f %s\n", o.FilledBase, escapeMarkdown(o.Symbol))
		fmt.Fprintf(&b, "Value: $%.2f\n", o.FilledQuote)
		fmt.Fprintf(&b, "Price: $%.6f\n", o.AvgFillPrice)
	}
	if o.Detail != "" {
		fmt.Fprintf(&b, "Detail: %s\n", escapeMarkdown(o.Detail))
	}
	if o.Warning != "" {
		fmt.Fprintf(&b, "\n*Warning:*\n%s\n", escapeMarkdown(o.Warning))
	}
	return b.String()
}
