package domain

import (
	"math"
	"time"
)

// Progress describes how far a challenge is through its window.
type Progress struct {
	DaysTotal int     `json:"daysTotal"`
	DaysLeft  int     `json:"daysLeft"`
	Fraction  float64 `json:"progress"`
}

// ComputeProgress derives the time progress of c at now.
func ComputeProgress(c Challenge, now time.Time) Progress {
	daysTotal := ceilDays(c.EndDate.Sub(c.StartDate))
	if c.Status(now) == StatusCompleted {
		return Progress{DaysTotal: daysTotal, DaysLeft: 0, Fraction: 1}
	}

	daysLeft := ceilDays(c.EndDate.Sub(now))
	fraction := 1.0
	if daysTotal > 0 {
		fraction = Clamp01(float64(daysTotal-daysLeft) / float64(daysTotal))
	}
	return Progress{DaysTotal: daysTotal, DaysLeft: daysLeft, Fraction: fraction}
}

// GoalProgress describes a participant's standing against the challenge target.
type GoalProgress struct {
	Steps   int64   `json:"steps"`
	Value   int64   `json:"value"`
	Target  int64   `json:"target"`
	Ratio   float64 `json:"ratio"`
	Reached bool    `json:"reached"`
}

// ComputeGoalProgress compares steps with the challenge target. For daily
// average challenges Value is the mean over the days elapsed so far.
func ComputeGoalProgress(c Challenge, steps int64, now time.Time) GoalProgress {
	value := steps
	if c.Type == ChallengeDailyAverage {
		value = roundHalfUp(float64(steps) / float64(ElapsedDays(c, now)))
	}

	var raw float64
	if c.TargetSteps > 0 {
		raw = float64(value) / float64(c.TargetSteps)
	}
	return GoalProgress{
		Steps:   steps,
		Value:   value,
		Target:  c.TargetSteps,
		Ratio:   Clamp01(raw),
		Reached: raw >= 1,
	}
}

// ElapsedDays counts the started days of the window at now, between 1 and the
// window length.
func ElapsedDays(c Challenge, now time.Time) int {
	total := ceilDays(c.EndDate.Sub(c.StartDate))
	elapsed := ceilDays(now.Sub(c.StartDate))
	if elapsed > total {
		elapsed = total
	}
	if elapsed < 1 {
		elapsed = 1
	}
	return elapsed
}

// Clamp01 bounds v to [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d) / float64(day)))
}
