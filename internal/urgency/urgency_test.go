package urgency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskwarlock/domain"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestScore_AgeOnlyPastAgeMaxEqualsAgeCoefficient(t *testing.T) {
	coeff := domain.DefaultUrgencyCoefficients()
	task := domain.Task{Description: "old", Entry: at(-400 * day)}

	assert.Equal(t, coeff.Age, Score(task, coeff, 365, now))
}

func TestScore_EmptyTaskIsZero(t *testing.T) {
	assert.Zero(t, Score(domain.Task{}, domain.DefaultUrgencyCoefficients(), 365, now))
}

func TestScore_PartialWithoutEntryIgnoresAge(t *testing.T) {
	coeff := domain.DefaultUrgencyCoefficients()
	task := domain.Task{Priority: domain.PriorityMedium}

	b := Explain(task, coeff, 365, now)
	assert.Zero(t, b.Age)
	assert.InDelta(t, coeff.PriorityM, b.Total(), 1e-9)
}

func TestScore_PriorityTerm(t *testing.T) {
	coeff := domain.DefaultUrgencyCoefficients()
	cases := map[domain.Priority]float64{
		domain.PriorityHigh:   coeff.PriorityH,
		domain.PriorityMedium: coeff.PriorityM,
		domain.PriorityLow:    coeff.PriorityL,
		domain.PriorityNone:   0,
	}
	for p, want := range cases {
		got := Score(domain.Task{Priority: p}, coeff, 365, now)
		assert.InDelta(t, want, got, 1e-9, "priority %q", p)
	}
}

func TestDueFactor_Boundaries(t *testing.T) {
	assert.Equal(t, 1.0, DueFactor(now.Add(-7*day), now))
	assert.Equal(t, 1.0, DueFactor(now.Add(-30*day), now))
	assert.InDelta(t, 0.2, DueFactor(now.Add(14*day), now), 1e-12)
	assert.Equal(t, 0.2, DueFactor(now.Add(14*day+time.Second), now))
	assert.Equal(t, 0.2, DueFactor(now.Add(60*day), now))

	// Due right now sits 14 days into the 21-day window.
	assert.InDelta(t, 14*0.8/21+0.2, DueFactor(now, now), 1e-12)
}

func TestDueFactor_ContinuousAcrossWindow(t *testing.T) {
	prev := DueFactor(now.Add(20*day), now)
	for h := 20 * 24; h >= -10*24; h-- {
		f := DueFactor(now.Add(time.Duration(h)*time.Hour), now)
		assert.GreaterOrEqual(t, f, prev-1e-12)
		assert.GreaterOrEqual(t, f, 0.2)
		assert.LessOrEqual(t, f, 1.0)
		prev = f
	}
}

func TestScore_TagsTable(t *testing.T) {
	coeff := domain.DefaultUrgencyCoefficients()
	coeff.Tags = 2.5

	cases := []struct {
		tags []string
		want float64
	}{
		{nil, 0},
		{[]string{"a"}, 0.8 * coeff.Tags},
		{[]string{"a", "b"}, 0.9 * coeff.Tags},
		{[]string{"a", "b", "c", "d", "e"}, 1.0 * coeff.Tags},
		{[]string{domain.NextTag}, coeff.Next + 0.8*coeff.Tags},
	}
	for _, tc := range cases {
		got := Score(domain.Task{Tags: tc.tags}, coeff, 365, now)
		assert.InDelta(t, tc.want, got, 1e-9, "tags %v", tc.tags)
	}
}

func TestScore_ProjectIsFlat(t *testing.T) {
	coeff := domain.DefaultUrgencyCoefficients()
	assert.InDelta(t, coeff.Project, Score(domain.Task{Project: "home"}, coeff, 365, now), 1e-9)
	assert.Zero(t, Score(domain.Task{Project: ""}, coeff, 365, now))
}

func TestAgeFactor(t *testing.T) {
	assert.Zero(t, AgeFactor(now, 365, now))
	assert.Zero(t, AgeFactor(now.Add(10*day), 365, now), "future entries never go negative")
	assert.InDelta(t, 100.0/365.0, AgeFactor(now.Add(-100*day-time.Hour), 365, now), 1e-12)
	assert.Equal(t, 1.0, AgeFactor(now.Add(-365*day), 365, now))
	assert.InDelta(t, 10.0/365.0, AgeFactor(now.Add(-10*day), 0, now), 1e-12, "non-positive ageMax uses default")
}

func TestScore_MonotonicInActiveCoefficients(t *testing.T) {
	task := domain.Task{
		Priority: domain.PriorityHigh,
		Project:  "work",
		Tags:     []string{domain.NextTag, "x"},
		Due:      at(2 * day),
		Entry:    at(-30 * day),
	}
	base := domain.DefaultUrgencyCoefficients()
	baseScore := Score(task, base, 365, now)

	bumps := map[string]func(*domain.UrgencyCoefficients){
		"priorityH": func(c *domain.UrgencyCoefficients) { c.PriorityH += 1 },
		"due":       func(c *domain.UrgencyCoefficients) { c.Due += 1 },
		"age":       func(c *domain.UrgencyCoefficients) { c.Age += 1 },
		"tags":      func(c *domain.UrgencyCoefficients) { c.Tags += 1 },
		"next":      func(c *domain.UrgencyCoefficients) { c.Next += 1 },
		"project":   func(c *domain.UrgencyCoefficients) { c.Project += 1 },
	}
	for name, bump := range bumps {
		c := base
		bump(&c)
		assert.Greater(t, Score(task, c, 365, now), baseScore, name)
	}

	// Inactive factors do not move the score.
	c := base
	c.PriorityL += 10
	assert.Equal(t, baseScore, Score(task, c, 365, now))
}

func TestScore_Idempotent(t *testing.T) {
	task := domain.Task{Priority: domain.PriorityLow, Tags: []string{"a"}, Due: at(-3 * day), Entry: at(-3 * day)}
	coeff := domain.DefaultUrgencyCoefficients()

	first := Score(task, coeff, 365, now)
	second := Score(task, coeff, 365, now)
	require.Equal(t, first, second)
}

func TestExplain_TotalMatchesScore(t *testing.T) {
	task := domain.Task{
		Priority: domain.PriorityMedium,
		Project:  "p",
		Tags:     []string{"a", "b", "c"},
		Due:      at(-1 * day),
		Entry:    at(-50 * day),
	}
	coeff := domain.DefaultUrgencyCoefficients()
	b := Explain(task, coeff, 365, now)

	assert.Equal(t, Score(task, coeff, 365, now), b.Total())
	assert.InDelta(t, coeff.PriorityM, b.Priority, 1e-9)
	assert.InDelta(t, coeff.Project, b.Project, 1e-9)
	assert.InDelta(t, coeff.Tags, b.Tags, 1e-9)
	assert.Zero(t, b.Next)
}
