package review

import "time"

// SLA response windows per priority.
var slaWindows = map[Priority]time.Duration{
	PriorityUrgent: 4 * time.Hour,
	PriorityHigh:   24 * time.Hour,
	PriorityNormal: 72 * time.Hour,
	PriorityLow:    168 * time.Hour,
}

// ComputePriority derives a review priority from obligation severity, an
// optional regulatory deadline, and control criticality tier. Deadlines
// within 48 hours force URGENT; within a week force at least HIGH.
func ComputePriority(obligationSeverity string, regulatoryDeadline *time.Time, controlTier string, now time.Time) Priority {
	if obligationSeverity == "critical" {
		return PriorityUrgent
	}

	if regulatoryDeadline != nil {
		untilDeadline := regulatoryDeadline.Sub(now)
		if untilDeadline <= 48*time.Hour {
			return PriorityUrgent
		}
		if untilDeadline <= 168*time.Hour {
			return PriorityHigh
		}
	}

	if obligationSeverity == "high" || controlTier == "tier1" {
		return PriorityHigh
	}
	if obligationSeverity == "medium" || controlTier == "tier2" {
		return PriorityNormal
	}
	return PriorityLow
}

// SLADeadline returns the response deadline for a review submitted at the
// given time. Unknown priorities get the LOW window.
func SLADeadline(submittedAt time.Time, priority Priority) time.Time {
	window, ok := slaWindows[priority]
	if !ok {
		window = slaWindows[PriorityLow]
	}
	return submittedAt.Add(window)
}

// IsSLABreached reports whether the review's SLA deadline has passed.
func IsSLABreached(submittedAt time.Time, priority Priority, now time.Time) bool {
	return now.After(SLADeadline(submittedAt, priority))
}

// DurationMinutes computes review duration in whole minutes, floored at zero
// so clock skew can never produce a negative duration.
func DurationMinutes(submittedAt, decidedAt time.Time) int {
	if decidedAt.Before(submittedAt) {
		return 0
	}
	return int(decidedAt.Sub(submittedAt) / time.Minute)
}
