package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegister_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(slotTransitions.WithLabelValues("book", "ok"))
	IncSlotTransition("book", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(slotTransitions.WithLabelValues("book", "ok")))

	before = testutil.ToFloat64(rollbacks.WithLabelValues("cancel"))
	IncRollback("cancel")
	assert.Equal(t, before+1, testutil.ToFloat64(rollbacks.WithLabelValues("cancel")))

	before = testutil.ToFloat64(apiRequests.WithLabelValues("list_slots", "ok"))
	ObserveAPIRequest("list_slots", "ok", 20*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(apiRequests.WithLabelValues("list_slots", "ok")))

	IncValidationFailure("user", map[string]string{"email": "x", "phone": "y"})
	assert.GreaterOrEqual(t, testutil.ToFloat64(validationFailures.WithLabelValues("user", "email")), 1.0)

	before = testutil.ToFloat64(apiCacheHits)
	IncCacheHit()
	assert.Equal(t, before+1, testutil.ToFloat64(apiCacheHits))

	before = testutil.ToFloat64(remindersSent.WithLabelValues("sent"))
	IncReminder("sent")
	assert.Equal(t, before+1, testutil.ToFloat64(remindersSent.WithLabelValues("sent")))

	SetRemindersPending(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(remindersPending))
}
