package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"sentinel/internal/adapters/config"
	"sentinel/internal/analysis"
	"sentinel/internal/domain/intel"
	"sentinel/pkg/errors"
	"sentinel/pkg/logger"
)

// Notifier delivers digests and critical alerts to a Telegram chat
type Notifier struct {
	api     *tgbotapi.BotAPI
	chatID  int64
	limiter *rate.Limiter
	log     *logger.Logger
}

// Ensure Notifier implements analysis.Notifier
var _ analysis.Notifier = (*Notifier)(nil)

// NewNotifier creates a Telegram-backed notifier
func NewNotifier(cfg config.TelegramConfig) (*Notifier, error) {
	if cfg.BotToken == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "telegram bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}

	log := logger.Get().With("component", "telegram_notifier")
	log.Infof("Authorized on account %s", api.Self.UserName)

	return &Notifier{
		api:    api,
		chatID: cfg.ReportChatID,
		// Telegram allows 30 msg/sec; stay conservative
		limiter: rate.NewLimiter(rate.Limit(20), 30),
		log:     log,
	}, nil
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := n.api.Send(msg); err != nil {
		return errors.Wrap(err, "failed to send telegram message")
	}
	return nil
}

// SendDigest delivers the daily run digest
func (n *Notifier) SendDigest(ctx context.Context, report *analysis.RunReport) error {
	var b strings.Builder

	statusIcon := "✅"
	if report.Run.Status == intel.RunStatusError {
		statusIcon = "❌"
	}

	fmt.Fprintf(&b, "%s <b>Daily Intelligence Digest</b> — %s\n\n",
		statusIcon, report.Run.RunDate.Format("Jan 2, 2006"))
	fmt.Fprintf(&b, "Findings: <b>%d</b>\n", report.Run.FindingsCount)
	fmt.Fprintf(&b, "Opportunities: <b>%d</b>\n", report.Run.OpportunitiesIdentified)
	fmt.Fprintf(&b, "Alerts: <b>%d</b>\n", len(report.Alerts))
	fmt.Fprintf(&b, "Duration: %s\n", report.ExecutionTime.Round(time.Second))

	if report.Run.KeyInsights != "" {
		fmt.Fprintf(&b, "\n<b>Key insights</b>\n%s\n", report.Run.KeyInsights)
	}

	if len(report.Run.Recommendations) > 0 {
		b.WriteString("\n<b>Recommendations</b>\n")
		for _, rec := range report.Run.Recommendations {
			fmt.Fprintf(&b, "• %s\n", rec)
		}
	}

	if len(report.Run.StageErrors) > 0 {
		b.WriteString("\n<b>Degraded stages</b>\n")
		for _, stageErr := range report.Run.StageErrors {
			fmt.Fprintf(&b, "• %s\n", stageErr)
		}
	}

	return n.send(ctx, b.String())
}

// SendWeeklyDigest delivers the weekly summary
func (n *Notifier) SendWeeklyDigest(ctx context.Context, report *analysis.WeeklyReport) error {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 <b>Weekly Intelligence Summary</b> — %s\n\n",
		report.GeneratedAt.Format("Jan 2, 2006"))
	fmt.Fprintf(&b, "Runs completed: <b>%d</b>\n", len(report.Runs))
	fmt.Fprintf(&b, "Findings: <b>%d</b>\n", len(report.Findings))
	fmt.Fprintf(&b, "Competitor updates: <b>%d</b>\n", len(report.Updates))
	fmt.Fprintf(&b, "Trends with momentum: <b>%d</b>\n", len(report.Trends))

	if s := report.Summary; s != nil {
		fmt.Fprintf(&b, "Critical updates: <b>%d</b>, accelerating trends: <b>%d</b>\n",
			s.CriticalUpdates, s.HighMomentumTrends)
	}

	if len(report.Opportunities) > 0 {
		b.WriteString("\n<b>Top opportunities</b>\n")
		for i, opp := range report.Opportunities {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "%d. %s (%.2f, %s)\n", i+1, opp.Title, opp.Score, opp.Priority)
		}
	}

	return n.send(ctx, b.String())
}

// SendCriticalAlert delivers one immediate alert
func (n *Notifier) SendCriticalAlert(ctx context.Context, alert intel.Alert) error {
	var b strings.Builder

	fmt.Fprintf(&b, "🚨 <b>%s</b>\n\n", alert.Title)
	if alert.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", alert.Description)
	}
	fmt.Fprintf(&b, "Impact: <b>%s</b>\nSource: %s", alert.Impact, alert.Source)

	return n.send(ctx, b.String())
}
