package common

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/controller/keyboard"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
)

// DefaultLiveTimeout - сколько живой список слотов обновляется без действий пользователя
const DefaultLiveTimeout = 10 * time.Minute

const finalEditTimeout = 5 * time.Second

// MessageEditor - то, чем живой экран правит своё сообщение
type MessageEditor interface {
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
}

// SlotsRenderer строит экран по текущему снимку слотов
type SlotsRenderer func(slots []model.Slot) (string, *models.InlineKeyboardMarkup)

// SlotsOpener открывает поток леджера, привязанный к ctx живого экрана
type SlotsOpener func(ctx context.Context) (*ledger.Stream[[]model.Slot], error)

// LiveViews держит не более одного живого экрана на чат. Экран правит своё
// сообщение при каждом снимке, пока его не заменят, не остановят или не истечёт таймаут.
type LiveViews struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	views map[int64]*liveView // chatID -> экран
}

type liveView struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLiveViews(timeout time.Duration, logger *zap.Logger) *LiveViews {
	if timeout <= 0 {
		timeout = DefaultLiveTimeout
	}
	return &LiveViews{
		timeout: timeout,
		logger:  logger,
		views:   make(map[int64]*liveView),
	}
}

// Start заменяет живой экран чата. Первый снимок потока рисуется сразу.
func (l *LiveViews) Start(ctx context.Context, ed MessageEditor, chatID int64, messageID int, open SlotsOpener, render SlotsRenderer) error {
	l.Stop(chatID)

	// экран переживает обработчик callback, но не остановку бота
	vctx, cancel := context.WithTimeout(ctx, l.timeout)
	stream, err := open(vctx)
	if err != nil {
		cancel()
		return err
	}

	v := &liveView{cancel: cancel, done: make(chan struct{})}
	l.mu.Lock()
	if prev, ok := l.views[chatID]; ok {
		// параллельный Start для того же чата
		prev.cancel()
	}
	l.views[chatID] = v
	l.mu.Unlock()

	go l.run(vctx, v, ed, chatID, messageID, stream, render)
	return nil
}

func (l *LiveViews) run(ctx context.Context, v *liveView, ed MessageEditor, chatID int64, messageID int, stream *ledger.Stream[[]model.Slot], render SlotsRenderer) {
	defer func() {
		stream.Close()
		v.cancel()

		l.mu.Lock()
		if l.views[chatID] == v {
			delete(l.views, chatID)
		}
		l.mu.Unlock()
		close(v.done)
	}()

	edit := func(ctx context.Context, text string, kb *models.InlineKeyboardMarkup) {
		params := &bot.EditMessageTextParams{ChatID: chatID, MessageID: messageID, Text: text}
		if kb != nil {
			params.ReplyMarkup = kb
		}
		if _, err := ed.EditMessageText(ctx, params); err != nil {
			l.logger.Debug("Live view edit failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
	// контекст экрана уже истёк: последнюю правку делаем отдельным
	finish := func(text string) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalEditTimeout)
		defer cancel()
		edit(fctx, text, keyboard.Empty())
	}
	expired := func() bool {
		return errors.Is(ctx.Err(), context.DeadlineExceeded)
	}

	for {
		select {
		case slots, ok := <-stream.C():
			if !ok {
				switch err := stream.Err(); {
				case expired():
					l.logger.Debug("Live view expired", zap.Int64("chat_id", chatID))
					finish(LiveExpiredText())
				case err != nil && ctx.Err() == nil:
					l.logger.Warn("Live view stream failed", zap.Int64("chat_id", chatID), zap.Error(err))
					finish(StreamBrokenText())
				}
				return
			}
			text, kb := render(slots)
			edit(ctx, text, kb)
		case <-ctx.Done():
			if expired() {
				l.logger.Debug("Live view expired", zap.Int64("chat_id", chatID))
				finish(LiveExpiredText())
			}
			return
		}
	}
}

// Stop останавливает живой экран чата и дожидается его завершения
func (l *LiveViews) Stop(chatID int64) {
	l.mu.Lock()
	v, ok := l.views[chatID]
	delete(l.views, chatID)
	l.mu.Unlock()

	if ok {
		v.cancel()
		<-v.done
	}
}

// Active - число работающих экранов
func (l *LiveViews) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.views)
}

// Close останавливает все экраны
func (l *LiveViews) Close() {
	l.mu.Lock()
	views := make([]*liveView, 0, len(l.views))
	for id, v := range l.views {
		views = append(views, v)
		delete(l.views, id)
	}
	l.mu.Unlock()

	for _, v := range views {
		v.cancel()
		<-v.done
	}
}
