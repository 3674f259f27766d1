package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Domenick1991/appointments/internal/apperr"
)

func TestCronJobMetrics_CountsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveDuration("reminders", 250*time.Millisecond)
	m.IncSuccess("reminders")
	m.IncFailure("reminders")
	m.IncFailure("")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.success.WithLabelValues("reminders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failure.WithLabelValues("reminders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failure.WithLabelValues("unknown")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestBookingMetrics_OutcomeLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.Observe("create", time.Now(), nil)
	m.Observe("create", time.Now(), apperr.New(apperr.CodeConflict, "taken"))
	m.Observe("create", time.Now(), apperr.New(apperr.CodeConflict, "taken"))
	m.InventoryLevel("Oil", 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("create", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("create", "CONFLICT")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.inventory.WithLabelValues("Oil")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var booking *BookingMetrics
	var cron *CronJobMetrics

	assert.NotPanics(t, func() {
		booking.Observe("create", time.Now(), nil)
		booking.Notification("booking_confirmation", "published")
		cron.IncSuccess("reminders")
		NewBookingMetrics(nil).Observe("cancel", time.Now(), nil)
	})
}
