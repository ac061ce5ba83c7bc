package warehouse

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_Timestamp(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	got := Sanitize("ts", ts)
	s, ok := got.(string)
	require.True(t, ok)
	assert.Contains(t, s, "2026-08-01T12:00:00")
}

func TestSanitize_NaNDegradesToString(t *testing.T) {
	got := Sanitize("x", math_NaN())
	_, isFloat := got.(float64)
	assert.False(t, isFloat)
}

func TestSanitizeRow_RoundTripsThroughJSON(t *testing.T) {
	raw := map[string]any{
		"ts":    time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		"count": int64(42),
		"name":  "desk-1",
		"blob":  []byte{1, 2, 3},
	}
	row := SanitizeRow(raw)

	b, err := json.Marshal(row)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "desk-1", out["name"])
}

// math_NaN avoids importing math solely for one constant in tests.
func math_NaN() float64 {
	var zero float64
	return zero / zero
}
