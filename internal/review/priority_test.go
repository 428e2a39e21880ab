package review

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputePriority(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}

	tests := []struct {
		name     string
		severity string
		deadline *time.Time
		tier     string
		want     Priority
	}{
		{name: "critical severity wins", severity: "critical", tier: "tier3", want: PriorityUrgent},
		{name: "critical severity beats distant deadline", severity: "critical", deadline: in(400 * time.Hour), want: PriorityUrgent},
		{name: "deadline within 48h", severity: "low", deadline: in(47 * time.Hour), want: PriorityUrgent},
		{name: "deadline exactly 48h", severity: "low", deadline: in(48 * time.Hour), want: PriorityUrgent},
		{name: "deadline within a week", severity: "low", deadline: in(100 * time.Hour), want: PriorityHigh},
		{name: "deadline beyond a week ignored", severity: "low", deadline: in(200 * time.Hour), want: PriorityLow},
		{name: "high severity", severity: "high", tier: "tier3", want: PriorityHigh},
		{name: "tier1 control", severity: "low", tier: "tier1", want: PriorityHigh},
		{name: "medium severity", severity: "medium", tier: "tier3", want: PriorityNormal},
		{name: "tier2 control", severity: "low", tier: "tier2", want: PriorityNormal},
		{name: "default low", severity: "low", tier: "tier3", want: PriorityLow},
		{name: "unknown severity defaults low", severity: "whatever", want: PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputePriority(tt.severity, tt.deadline, tt.tier, now))
		})
	}
}

func TestSLADeadline(t *testing.T) {
	submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, submitted.Add(4*time.Hour), SLADeadline(submitted, PriorityUrgent))
	assert.Equal(t, submitted.Add(24*time.Hour), SLADeadline(submitted, PriorityHigh))
	assert.Equal(t, submitted.Add(72*time.Hour), SLADeadline(submitted, PriorityNormal))
	assert.Equal(t, submitted.Add(168*time.Hour), SLADeadline(submitted, PriorityLow))

	// Unknown priorities fall back to the widest window.
	assert.Equal(t, submitted.Add(168*time.Hour), SLADeadline(submitted, Priority("mystery")))
}

func TestIsSLABreached(t *testing.T) {
	submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, IsSLABreached(submitted, PriorityUrgent, submitted.Add(3*time.Hour)))
	assert.False(t, IsSLABreached(submitted, PriorityUrgent, submitted.Add(4*time.Hour)), "deadline itself is not a breach")
	assert.True(t, IsSLABreached(submitted, PriorityUrgent, submitted.Add(4*time.Hour+time.Second)))
	assert.True(t, IsSLABreached(submitted, PriorityHigh, submitted.Add(25*time.Hour)))
}

func TestDurationMinutes(t *testing.T) {
	submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, DurationMinutes(submitted, submitted))
	assert.Equal(t, 0, DurationMinutes(submitted, submitted.Add(59*time.Second)))
	assert.Equal(t, 90, DurationMinutes(submitted, submitted.Add(90*time.Minute+30*time.Second)))
	assert.Equal(t, 0, DurationMinutes(submitted, submitted.Add(-time.Hour)), "clock skew never yields negative duration")
}
