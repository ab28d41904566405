// Package metrics - метрики Prometheus леджера, API и внешних вызовов.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Значения метки result
const (
	ResultOK          = "ok"
	ResultUnavailable = "unavailable"
	ResultNotFound    = "not_found"
	ResultError       = "error"
)

// Metrics - все метрики приложения
type Metrics struct {
	SlotsPublished   prometheus.Counter
	SlotClaims       *prometheus.CounterVec
	SlotReleases     prometheus.Counter
	SlotWithdrawals  prometheus.Counter
	BookingAnomalies prometheus.Counter
	ActiveStreams    prometheus.Gauge
	SlotsByStatus    *prometheus.GaugeVec
	EventsPublished  *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// New создаёт метрики и регистрирует их в reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SlotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "felanocare_slots_published_total",
			Help: "Total slots published by professionals",
		}),
		SlotClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "felanocare_slot_claims_total",
			Help: "Slot claim attempts by result",
		}, []string{"result"}),
		SlotReleases: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "felanocare_slot_releases_total",
			Help: "Bookings released back to available",
		}),
		SlotWithdrawals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "felanocare_slot_withdrawals_total",
			Help: "Slots withdrawn by professionals",
		}),
		BookingAnomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "felanocare_booking_anomalies_total",
			Help: "Patients observed holding more than one active booking with a professional",
		}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "felanocare_active_streams",
			Help: "Live ledger subscriptions currently open",
		}),
		SlotsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "felanocare_slots",
			Help: "Slots by derived status, refreshed by the background sweep",
		}, []string{"status"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "felanocare_slot_events_total",
			Help: "Slot events handed to the event publisher by outcome",
		}, []string{"result"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "felanocare_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		m.SlotsPublished,
		m.SlotClaims,
		m.SlotReleases,
		m.SlotWithdrawals,
		m.BookingAnomalies,
		m.ActiveStreams,
		m.SlotsByStatus,
		m.EventsPublished,
		m.HTTPDuration,
	)

	return m
}

// NewUnregistered создаёт метрики на собственном реестре (тесты)
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler отдаёт метрики gatherer по HTTP
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
