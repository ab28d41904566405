// Package common - общие зависимости, экраны и помощники обработчиков бота
package common

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/controller/state"
	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/service"
)

// Messenger - часть API бота, которой пользуются обработчики. *bot.Bot удовлетворяет.
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// Deps - зависимости обработчиков команд и callback
type Deps struct {
	Profiles     *service.ProfileService
	Bookings     *service.BookingService
	Professional *service.ProfessionalService
	Ledger       *ledger.Ledger
	State        *state.Manager
	Live         *LiveViews
	Now          func() time.Time
	Logger       *zap.Logger
}

// Today - текущая дата в формате YYYY-MM-DD
func (d *Deps) Today() string {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	return now().Format(model.DateLayout)
}

// Session находит профиль пользователя Telegram и строит сессию для вызовов сервисов
func (d *Deps) Session(ctx context.Context, telegramID int64) (*model.Profile, identity.Session, error) {
	p, err := d.Profiles.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, identity.Session{}, err
	}
	if p == nil {
		return nil, identity.Session{}, ErrUserNotFound
	}
	return p, identity.Session{UserID: p.UID, Role: p.Role}, nil
}

// Send отправляет сообщение; kb может быть nil
func Send(ctx context.Context, m Messenger, chatID int64, text string, kb *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	_, _ = m.SendMessage(ctx, params)
}

// Edit заменяет текст и клавиатуру сообщения
func Edit(ctx context.Context, m Messenger, msg *models.Message, text string, kb *models.InlineKeyboardMarkup) error {
	params := &bot.EditMessageTextParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      text,
	}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	_, err := m.EditMessageText(ctx, params)
	return err
}

// AnswerCallback отвечает на callback query (без alert)
func AnswerCallback(ctx context.Context, m Messenger, callbackID string, text string) {
	_, _ = m.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       false,
	})
}

// AnswerCallbackAlert отвечает на callback query с alert (всплывающее окно)
func AnswerCallbackAlert(ctx context.Context, m Messenger, callbackID string, text string) {
	_, _ = m.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       true,
	})
}

// GetMessageFromCallback извлекает сообщение из callback query
func GetMessageFromCallback(callback *models.CallbackQuery) *models.Message {
	return callback.Message.Message
}

// ParseArgs разбирает callback data вида "prefix:a:b" на n непустых аргументов
func ParseArgs(data, prefix string, n int) ([]string, error) {
	rest, ok := strings.CutPrefix(data, prefix)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, data)
	}
	args := strings.SplitN(rest, ":", n)
	if len(args) != n {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, data)
	}
	for _, a := range args {
		if a == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, data)
		}
	}
	return args, nil
}

// DisplayName - имя пользователя Telegram для профиля
func DisplayName(u *models.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}
