package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/store"
)

// SlotChangesChannel - канал NOTIFY, в который пишет триггер slots_notify_change
const SlotChangesChannel = "slot_changes"

// Listener держит выделенное соединение с LISTEN на каналах триггеров и передаёт
// уведомления в хаб соответствующего канала. При потере соединения все текущие
// подписки завершаются с ошибкой, после паузы слушатель переподключается.
type Listener struct {
	pool   *pgxpool.Pool
	routes map[string]*store.Hub
	logger *zap.Logger
	retry  time.Duration
}

// NewListener слушает slot_changes; остальные каналы подключаются через Route
func NewListener(pool *pgxpool.Pool, hub *store.Hub, logger *zap.Logger) *Listener {
	return &Listener{
		pool:   pool,
		routes: map[string]*store.Hub{SlotChangesChannel: hub},
		logger: logger,
		retry:  2 * time.Second,
	}
}

// Route направляет уведомления канала в hub. Вызывается до Run.
func (l *Listener) Route(channel string, hub *store.Hub) *Listener {
	l.routes[channel] = hub
	return l
}

// Run блокируется до отмены контекста
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			l.failAll(nil)
			return nil
		}

		l.logger.Warn("Change listener disconnected", zap.Error(err), zap.Duration("retry_in", l.retry))
		l.failAll(fmt.Errorf("change listener: %w", err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.retry):
		}
	}
}

func (l *Listener) failAll(err error) {
	for _, hub := range l.routes {
		hub.Fail(err)
	}
}

func (l *Listener) listen(ctx context.Context) error {
	pooled, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	// соединение с LISTEN не должно вернуться в пул
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	channels := slices.Sorted(maps.Keys(l.routes))
	for _, ch := range channels {
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ch}.Sanitize()); err != nil {
			return fmt.Errorf("listen %s: %w", ch, err)
		}
	}
	l.logger.Info("Listening for changes", zap.Strings("channels", channels))
	// NOTIFY до LISTEN потеряны: подписчики, открытые за время паузы или до
	// первого подключения, перечитывают снимок
	for _, hub := range l.routes {
		hub.NotifyAll()
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		hub, ok := l.routes[n.Channel]
		if !ok {
			l.logger.Warn("Notification on unrouted channel", zap.String("channel", n.Channel))
			continue
		}
		hub.Notify(n.Payload)
	}
}
