package localtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestResolver_LocalNow(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewResolver("", zap.New(core))

	now := time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		tz       string
		wantZone string
		wantHour int
		fellBack bool
	}{
		{name: "valid", tz: "Asia/Yekaterinburg", wantZone: "Asia/Yekaterinburg", wantHour: 22},
		{name: "empty", tz: "", wantZone: DefaultTimezone, wantHour: 20, fellBack: true},
		{name: "invalid", tz: "Mars/Olympus", wantZone: DefaultTimezone, wantHour: 20, fellBack: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lt := r.LocalNow(tt.tz, now)
			assert.Equal(t, tt.wantZone, lt.Location.String())
			assert.Equal(t, tt.wantHour, lt.Time.Hour())
			assert.Equal(t, tt.fellBack, lt.FellBack)
			assert.True(t, lt.Time.Equal(now))
		})
	}

	assert.Equal(t, 2, logs.Len(), "each fallback must be logged")
}

func TestResolver_CustomDefault(t *testing.T) {
	r := NewResolver("Asia/Tokyo", zap.NewNop())

	loc, fellBack := r.Location("nope/nope")
	require.True(t, fellBack)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestLocalTime_At(t *testing.T) {
	r := NewResolver("", zap.NewNop())
	lt := r.LocalNow("Europe/Moscow", time.Date(2025, 3, 10, 17, 2, 30, 0, time.UTC))

	target := lt.At(20, 0)
	assert.Equal(t, 2*time.Minute+30*time.Second, lt.Time.Sub(target))
}

func TestDaysBetween(t *testing.T) {
	msk, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	from := time.Date(2025, 3, 10, 23, 30, 0, 0, msk)

	assert.Equal(t, 0, DaysBetween(from, from.Add(20*time.Minute), msk))
	assert.Equal(t, 1, DaysBetween(from, from.Add(40*time.Minute), msk))
	assert.Equal(t, 2, DaysBetween(from, time.Date(2025, 3, 12, 8, 0, 0, 0, msk), msk))
	assert.Equal(t, -1, DaysBetween(from, time.Date(2025, 3, 9, 8, 0, 0, 0, msk), msk))
}
