// Package api собирает HTTP API записи: роутер chi, middleware,
// пробы health/ready и метрики Prometheus.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/api/handlers"
	"github.com/Freeeeeet/felanocare/internal/api/middleware"
	"github.com/Freeeeeet/felanocare/internal/metrics"
)

// Pinger проверяет готовность хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr     string
	Handlers *handlers.Handler
	Tokens   middleware.TokenParser
	Ready    Pinger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewRouter собирает маршруты /api/v1 и служебные эндпоинты
func NewRouter(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	h := cfg.Handlers
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Tracing("felanocare-api"))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	r.Get("/health", healthHandler)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready.Ping(r.Context()); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if cfg.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(cfg.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/signup/patient", h.SignupPatient)
		r.Post("/auth/signup/professional", h.SignupProfessional)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Tokens))

			r.Post("/auth/logout", h.Logout)
			r.Get("/professionals", h.ListProfessionals)

			r.Route("/owners/{ownerID}", func(r chi.Router) {
				r.Get("/slots", h.ListSlots)
				r.Post("/slots", h.PublishSlot)
				r.Post("/slots/{slotID}/withdraw", h.WithdrawSlot)
				r.Get("/dates", h.ListDates)
				r.Get("/booking", h.GetBooking)
				r.Delete("/booking", h.CancelBooking)
			})

			r.Post("/slots/{slotID}/claim", h.ClaimSlot)
			r.Post("/slots/{slotID}/release", h.ReleaseSlot)

			r.Get("/me", h.Me)
			r.Patch("/me", h.UpdateMe)
			r.Get("/me/overview", h.Overview)
			r.Get("/me/dashboard", h.Dashboard)
			r.Get("/me/journal", h.ListJournal)
			r.Post("/me/journal", h.AddJournalEntry)

			r.Get("/products", h.ListProducts)
			r.Post("/products", h.ImportProduct)
			r.Get("/products/candidates", h.ProductCandidates)
			r.Get("/products/{productID}", h.GetProduct)
			r.Put("/products/{productID}/stock", h.SetStock)

			r.Get("/cart", h.GetCart)
			r.Post("/cart", h.AddToCart)
			r.Delete("/cart", h.ClearCart)
			r.Delete("/cart/{productID}", h.RemoveFromCart)

			r.Get("/drugs", h.SearchDrugs)
			r.Post("/advice", h.Advice)

			r.Get("/ws/owners/{ownerID}/slots", h.StreamSlots)
			r.Get("/ws/owners/{ownerID}/dates", h.StreamDates)
			r.Get("/ws/owners/{ownerID}/booking", h.StreamBooking)
			r.Get("/ws/me/journal", h.StreamJournal)
			r.Get("/ws/products", h.StreamProducts)
		})
	})

	return r
}

// Server - HTTP сервер с корректной остановкой
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:        cfg.Addr,
			Handler:     NewRouter(cfg),
			ReadTimeout: 15 * time.Second,
			// WriteTimeout не задан: websocket потоки живут долго
			IdleTimeout: 60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

// Run слушает до отмены ctx, затем останавливает сервер
func (s *Server) Run(ctx context.Context) error {
	// потоки websocket наследуют ctx и закрываются вместе с сервером
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP API", zap.String("addr", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","service":"felanocare"}`))
}
