package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubscription(t *testing.T) {
	raw := map[string]interface{}{
		"id":            "sub_123",
		"status":        "active",
		"customer_id":   "cust_9",
		"current_start": float64(1741600800),
		"current_end":   float64(1744192800),
	}

	sub, err := parseSubscription(raw)
	require.NoError(t, err)
	assert.Equal(t, "sub_123", sub.ID)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, "cust_9", sub.CustomerID)
	assert.Equal(t, time.Unix(1741600800, 0).UTC(), sub.CurrentPeriodStart)
	assert.Equal(t, time.Unix(1744192800, 0).UTC(), sub.CurrentPeriodEnd)
	assert.True(t, sub.Active())
}

func TestParseSubscriptionMissingID(t *testing.T) {
	_, err := parseSubscription(map[string]interface{}{"status": "active"})
	assert.Error(t, err)
}

func TestParseSubscriptionMissingPeriods(t *testing.T) {
	sub, err := parseSubscription(map[string]interface{}{"id": "sub_123", "status": "cancelled"})
	require.NoError(t, err)
	assert.True(t, sub.CurrentPeriodEnd.IsZero())
	assert.False(t, sub.Active())
}

func TestEpochField(t *testing.T) {
	raw := map[string]interface{}{
		"float": float64(100),
		"int":   int64(200),
		"zero":  float64(0),
		"text":  "nope",
	}

	got, ok := epochField(raw, "float")
	assert.True(t, ok)
	assert.Equal(t, time.Unix(100, 0).UTC(), got)

	got, ok = epochField(raw, "int")
	assert.True(t, ok)
	assert.Equal(t, time.Unix(200, 0).UTC(), got)

	_, ok = epochField(raw, "zero")
	assert.False(t, ok)
	_, ok = epochField(raw, "text")
	assert.False(t, ok)
	_, ok = epochField(raw, "missing")
	assert.False(t, ok)
}
