// Package leveling computes level progression from experience points.
package leveling

import (
	"math"
)

// DefaultBaseThreshold is the XP needed to leave level 1.
const DefaultBaseThreshold int64 = 50

// Curve describes how much XP each level requires.
// ThresholdFor(level) = round(BaseThreshold * GrowthFactor^(level-1)), never below 1.
type Curve struct {
	BaseThreshold int64
	GrowthFactor  float64
}

// DefaultCurve is the flat curve: every level needs 50 XP.
func DefaultCurve() Curve {
	return Curve{BaseThreshold: DefaultBaseThreshold, GrowthFactor: 1}
}

// Outcome is the result of applying gained XP to a level state.
type Outcome struct {
	NewLevel     int
	NewXP        int64
	NewXPNext    int64
	LeveledUp    bool
	LevelsGained int
}

func (c Curve) normalized() Curve {
	if c.BaseThreshold <= 0 {
		c.BaseThreshold = DefaultBaseThreshold
	}
	if c.GrowthFactor < 1 || math.IsNaN(c.GrowthFactor) || math.IsInf(c.GrowthFactor, 0) {
		c.GrowthFactor = 1
	}
	return c
}

// ThresholdFor returns the XP needed to go from level to level+1.
func (c Curve) ThresholdFor(level int) int64 {
	c = c.normalized()
	if level < 1 {
		level = 1
	}
	if c.GrowthFactor == 1 {
		return c.BaseThreshold
	}

	v := float64(c.BaseThreshold) * math.Pow(c.GrowthFactor, float64(level-1))
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	t := int64(math.Round(v))
	if t < 1 {
		return 1
	}
	return t
}

// ApplyXP adds gained XP to (level, xp, xpNext) and carries the remainder over every
// level-up. Invalid inputs are normalised: level is clamped to 1, a non-positive xpNext
// is recomputed from the curve, negative xp and negative gains count as zero.
func (c Curve) ApplyXP(level int, xp, xpNext, gained int64) Outcome {
	if level < 1 {
		level = 1
	}
	if xp < 0 {
		xp = 0
	}
	if xpNext <= 0 {
		xpNext = c.ThresholdFor(level)
	}
	if gained < 0 {
		gained = 0
	}

	out := Outcome{NewLevel: level, NewXP: xp, NewXPNext: xpNext}

	// Saturate instead of overflowing.
	if gained > math.MaxInt64-out.NewXP {
		out.NewXP = math.MaxInt64
	} else {
		out.NewXP += gained
	}

	flat := c.normalized().GrowthFactor == 1
	for out.NewXP >= out.NewXPNext {
		// Past the first level-up every threshold on a flat curve is the same.
		if flat && out.LevelsGained > 0 {
			out.addLevels(out.NewXP / out.NewXPNext)
			out.NewXP %= out.NewXPNext
			break
		}
		out.NewXP -= out.NewXPNext
		out.addLevels(1)
		out.NewXPNext = c.ThresholdFor(out.NewLevel)
	}
	out.LeveledUp = out.LevelsGained > 0
	return out
}

func (o *Outcome) addLevels(n int64) {
	if n > int64(math.MaxInt-o.NewLevel) {
		n = int64(math.MaxInt - o.NewLevel)
	}
	o.NewLevel += int(n)
	o.LevelsGained += int(n)
}

// XPForPoints converts earned points to XP at the given rate. Non-positive
// inputs yield zero.
func XPForPoints(points int64, rate float64) int64 {
	if points <= 0 || rate <= 0 {
		return 0
	}
	if rate == 1 {
		return points
	}
	xp := math.Floor(float64(points) * rate)
	if xp >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(xp)
}
