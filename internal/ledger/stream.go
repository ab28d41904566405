package ledger

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/metrics"
	"github.com/Freeeeeet/felanocare/internal/store"
)

// Stream - живой запрос к леджеру. C() отдаёт полный текущий снимок при каждом
// значимом изменении; в канале хранится только последний снимок.
// Канал закрывается при завершении; Err() != nil, если поток оборвался из-за сбоя.
type Stream[T any] struct {
	c      chan T
	done   chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

func (s *Stream[T]) C() <-chan T {
	return s.c
}

// Done закрывается после остановки потока
func (s *Stream[T]) Done() <-chan struct{} {
	return s.done
}

func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close отписывается и дожидается остановки
func (s *Stream[T]) Close() {
	s.cancel()
	<-s.done
}

func (s *Stream[T]) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// offer кладёт снимок, вытесняя непрочитанный устаревший. Пишет только одна горутина,
// поэтому после вытеснения запись не блокируется.
func (s *Stream[T]) offer(v T) {
	for {
		select {
		case s.c <- v:
			return
		default:
		}
		select {
		case <-s.c:
		default:
		}
	}
}

// watch подписывается на изменения владельца, затем отдаёт начальный снимок и
// перечитывает его после каждого уведомления. Одинаковые подряд снимки не отдаются.
func watch[T any](
	ctx context.Context,
	l *Ledger,
	name string,
	ownerID string,
	load func(context.Context) (T, error),
	equal func(a, b T) bool,
) (*Stream[T], error) {
	// подписка раньше первого чтения, чтобы не потерять изменение между ними
	sub, err := l.slots.Watch(ctx, ownerID)
	if err != nil {
		return nil, storeErr("watch slots", err)
	}
	return Follow(ctx, sub, StreamOptions{
		Name:    name,
		Key:     ownerID,
		Metrics: l.metrics,
		Logger:  l.logger,
	}, load, equal), nil
}

// StreamOptions - подписи для логов и метрик потока
type StreamOptions struct {
	Name    string
	Key     string
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Follow строит поток поверх уже открытой подписки хранилища: начальный снимок
// и перечитывание load после каждого сигнала. Подписку нужно открыть до вызова,
// поток закрывает её сам.
func Follow[T any](
	ctx context.Context,
	sub store.Subscription,
	opts StreamOptions,
	load func(context.Context) (T, error),
	equal func(a, b T) bool,
) *Stream[T] {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewUnregistered()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger.With(zap.String("stream", opts.Name), zap.String("key", opts.Key))

	ctx, cancel := context.WithCancel(ctx)
	s := &Stream[T]{
		c:      make(chan T, 1),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	opts.Metrics.ActiveStreams.Inc()
	go func() {
		defer close(s.done)
		defer close(s.c)
		defer sub.Close()
		defer opts.Metrics.ActiveStreams.Dec()

		var last T
		emitted := false

		refresh := func() bool {
			v, err := load(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("Stream terminated", zap.Error(err))
					s.fail(err)
				}
				return false
			}
			if emitted && equal(last, v) {
				return true
			}
			last, emitted = v, true
			s.offer(v)
			return true
		}

		if !refresh() {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C():
				if !ok {
					if err := sub.Err(); err != nil {
						logger.Warn("Stream subscription lost", zap.Error(err))
						s.fail(storeErr("watch "+opts.Name, err))
					}
					return
				}
				if !refresh() {
					return
				}
			}
		}
	}()

	return s
}
