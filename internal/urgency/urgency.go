// Package urgency predicts Taskwarrior's urgency score for a task.
//
// The formula must track Taskwarrior's own computation: the cached value is only a
// prediction until the next authoritative export replaces it.
package urgency

import (
	"math"
	"time"

	"github.com/fastygo/taskwarlock/domain"
)

const day = 24 * time.Hour

// Due window bounds, in days relative to now.
const (
	dueOverdueSaturation = 7.0
	dueFutureHorizon     = -14.0
	dueWindowDays        = 21.0
	dueFactorMin         = 0.2
	dueFactorSpan        = 0.8
)

// Breakdown is the per-factor contribution to a score.
type Breakdown struct {
	Priority float64 `json:"priority"`
	Due      float64 `json:"due"`
	Age      float64 `json:"age"`
	Tags     float64 `json:"tags"`
	Next     float64 `json:"next"`
	Project  float64 `json:"project"`
}

// Total sums all contributions.
func (b Breakdown) Total() float64 {
	return b.Priority + b.Due + b.Age + b.Tags + b.Next + b.Project
}

// Score returns the predicted urgency of t at now.
func Score(t domain.Task, c domain.UrgencyCoefficients, ageMax int, now time.Time) float64 {
	return Explain(t, c, ageMax, now).Total()
}

// Explain computes each factor's contribution. Fields absent from a partial task contribute zero.
func Explain(t domain.Task, c domain.UrgencyCoefficients, ageMax int, now time.Time) Breakdown {
	if ageMax <= 0 {
		ageMax = domain.DefaultUrgencyAgeMax
	}

	var b Breakdown

	switch t.Priority {
	case domain.PriorityHigh:
		b.Priority = c.PriorityH
	case domain.PriorityMedium:
		b.Priority = c.PriorityM
	case domain.PriorityLow:
		b.Priority = c.PriorityL
	}

	if t.Due != nil {
		b.Due = c.Due * DueFactor(*t.Due, now)
	}

	// Partial updates carry no entry and cannot know the creation time.
	if t.Entry != nil {
		b.Age = c.Age * AgeFactor(*t.Entry, ageMax, now)
	}

	if len(t.Tags) > 0 {
		b.Tags = c.Tags * TagsFactor(len(t.Tags))
		if t.HasTag(domain.NextTag) {
			b.Next = c.Next
		}
	}

	if t.Project != "" {
		b.Project = c.Project
	}

	return b
}

// DueFactor maps a due date onto [0.2, 1.0] across a 21-day window: saturated at 7 days
// overdue, linear down to 14 days out, flat beyond.
func DueFactor(due, now time.Time) float64 {
	daysOverdue := float64(now.Sub(due)) / float64(day)

	switch {
	case daysOverdue >= dueOverdueSaturation:
		return 1.0
	case daysOverdue >= dueFutureHorizon:
		return ((daysOverdue-dueFutureHorizon)*dueFactorSpan)/dueWindowDays + dueFactorMin
	default:
		return dueFactorMin
	}
}

// AgeFactor is the task age in whole days over ageMax, capped at 1. Entries in the future count as zero age.
func AgeFactor(entry time.Time, ageMax int, now time.Time) float64 {
	if ageMax <= 0 {
		ageMax = domain.DefaultUrgencyAgeMax
	}
	ageDays := math.Floor(float64(now.Sub(entry)) / float64(day))
	if ageDays <= 0 {
		return 0
	}
	if ageDays >= float64(ageMax) {
		return 1.0
	}
	return ageDays / float64(ageMax)
}

// TagsFactor is Taskwarrior's graduated tag scale: 1 tag 0.8, 2 tags 0.9, 3+ tags 1.0.
func TagsFactor(count int) float64 {
	switch {
	case count <= 0:
		return 0
	case count == 1:
		return 0.8
	case count == 2:
		return 0.9
	default:
		return 1.0
	}
}
