package notify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	"go.uber.org/zap"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/retry"
)

// TelegramSender delivers messages through the Bot API.
type TelegramSender struct {
	Bot *telego.Bot
}

func NewTelegramSender(token string) (*TelegramSender, error) {
	bot, err := telego.NewBot(token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramSender{Bot: bot}, nil
}

func (s *TelegramSender) Send(ctx context.Context, msg Message) error {
	if s == nil || s.Bot == nil {
		return errors.New("telegram sender is not configured")
	}
	_, err := s.Bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:              telego.ChatID{ID: msg.ChatID},
		Text:                msg.Text,
		ParseMode:           msg.ParseMode,
		DisableNotification: msg.Silent,
	})
	return err
}

var apiCodePattern = regexp.MustCompile(`api: (\d{3})\b`)

// TelegramClassifier maps Bot API error codes: 429 and 5xx are transient.
func TelegramClassifier(err error) (retry.ErrorKind, bool) {
	var apiErr *telegoapi.Error
	if errors.As(err, &apiErr) {
		return retry.KindForStatus(apiErr.ErrorCode), true
	}
	if m := apiCodePattern.FindStringSubmatch(err.Error()); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			return retry.KindForStatus(code), true
		}
	}
	return retry.Permanent, false
}

// LogSender only logs; used with notify.dry_run.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	if s.Logger != nil {
		s.Logger.Info("dry-run delivery",
			zap.Int64("chat_id", msg.ChatID),
			zap.Bool("silent", msg.Silent),
			zap.Int("length", len(msg.Text)),
		)
	}
	return nil
}
