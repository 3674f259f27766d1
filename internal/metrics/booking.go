package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Domenick1991/appointments/internal/apperr"
)

const namespace = "appointments"

// BookingMetrics counts lifecycle operations by outcome.
type BookingMetrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	inventory     *prometheus.GaugeVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	if reg == nil {
		return &BookingMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_operations_total",
		Help:      "Booking lifecycle operations by outcome code.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "booking_operation_duration_seconds",
		Help:      "Latency of booking lifecycle operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification events by kind and delivery result.",
	}, []string{"kind", "result"})
	inventory := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "inventory_quantity",
		Help:      "Last observed quantity of an inventory item.",
	}, []string{"item"})
	reg.MustRegister(operations, duration, notifications, inventory)
	return &BookingMetrics{
		operations:    operations,
		duration:      duration,
		notifications: notifications,
		inventory:     inventory,
	}
}

// Observe records one operation; the outcome label is "ok" or the error code.
func (m *BookingMetrics) Observe(operation string, started time.Time, err error) {
	if m == nil || m.operations == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.CodeOf(err))
	}
	m.operations.WithLabelValues(normalizeLabel(operation), outcome).Inc()
	m.duration.WithLabelValues(normalizeLabel(operation)).Observe(time.Since(started).Seconds())
}

func (m *BookingMetrics) Notification(kind, result string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(kind), normalizeLabel(result)).Inc()
}

func (m *BookingMetrics) InventoryLevel(item string, quantity int) {
	if m == nil || m.inventory == nil {
		return
	}
	m.inventory.WithLabelValues(normalizeLabel(item)).Set(float64(quantity))
}
