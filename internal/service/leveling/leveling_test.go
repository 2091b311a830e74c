package leveling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThresholdFor(t *testing.T) {
	tests := []struct {
		name  string
		curve Curve
		level int
		want  int64
	}{
		{"flat curve level 1", DefaultCurve(), 1, 50},
		{"flat curve level 10", DefaultCurve(), 10, 50},
		{"growing curve level 1", Curve{BaseThreshold: 100, GrowthFactor: 1.5}, 1, 100},
		{"growing curve level 3", Curve{BaseThreshold: 100, GrowthFactor: 1.5}, 3, 225},
		{"level below 1 clamps", Curve{BaseThreshold: 100, GrowthFactor: 2}, 0, 100},
		{"zero base falls back", Curve{}, 1, DefaultBaseThreshold},
		{"shrinking curve is flat", Curve{BaseThreshold: 40, GrowthFactor: 0.5}, 5, 40},
		{"huge level saturates", Curve{BaseThreshold: 50, GrowthFactor: 10}, 100, math.MaxInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.curve.ThresholdFor(tt.level))
		})
	}
}

func TestApplyXP(t *testing.T) {
	curve := DefaultCurve()

	tests := []struct {
		name               string
		level              int
		xp, xpNext, gained int64
		wantLevel          int
		wantXP, wantXPNext int64
		wantUp             bool
		wantGained         int
	}{
		{"no level up", 1, 10, 50, 20, 1, 30, 50, false, 0},
		{"single level up with carry", 1, 40, 50, 20, 2, 10, 50, true, 1},
		{"exact threshold", 1, 30, 50, 20, 2, 0, 50, true, 1},
		{"multiple level ups", 1, 0, 50, 130, 3, 30, 50, true, 2},
		{"zero gain", 4, 12, 50, 0, 4, 12, 50, false, 0},
		{"negative gain ignored", 2, 5, 50, -30, 2, 5, 50, false, 0},
		{"invalid level clamped", 0, 0, 50, 10, 1, 10, 50, false, 0},
		{"invalid xpNext recomputed", 3, 0, 0, 60, 4, 10, 50, true, 1},
		{"negative xp treated as zero", 1, -20, 50, 10, 1, 10, 50, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := curve.ApplyXP(tt.level, tt.xp, tt.xpNext, tt.gained)
			assert.Equal(t, tt.wantLevel, out.NewLevel)
			assert.Equal(t, tt.wantXP, out.NewXP)
			assert.Equal(t, tt.wantXPNext, out.NewXPNext)
			assert.Equal(t, tt.wantUp, out.LeveledUp)
			assert.Equal(t, tt.wantGained, out.LevelsGained)
		})
	}
}

func TestApplyXP_GrowingCurve(t *testing.T) {
	curve := Curve{BaseThreshold: 100, GrowthFactor: 2}

	// 100 to leave level 1, 200 to leave level 2, 400 to leave level 3.
	out := curve.ApplyXP(1, 0, 100, 350)

	assert.Equal(t, 3, out.NewLevel)
	assert.Equal(t, int64(50), out.NewXP)
	assert.Equal(t, int64(400), out.NewXPNext)
	assert.Equal(t, 2, out.LevelsGained)
}

func TestApplyXP_Invariants(t *testing.T) {
	curves := []Curve{DefaultCurve(), {BaseThreshold: 10, GrowthFactor: 1.3}, {BaseThreshold: 1, GrowthFactor: 1}}

	for _, curve := range curves {
		for level := 1; level <= 5; level++ {
			for _, gained := range []int64{0, 1, 9, 49, 50, 51, 500, 12345} {
				next := curve.ThresholdFor(level)
				out := curve.ApplyXP(level, 0, next, gained)

				assert.GreaterOrEqual(t, out.NewLevel, level)
				assert.GreaterOrEqual(t, out.NewXP, int64(0))
				assert.Less(t, out.NewXP, out.NewXPNext)
				assert.Equal(t, out.NewLevel-level, out.LevelsGained)
				assert.Equal(t, out.LevelsGained > 0, out.LeveledUp)
			}
		}
	}
}

func TestApplyXP_HugeGainTerminates(t *testing.T) {
	curve := Curve{BaseThreshold: 50, GrowthFactor: 2}

	out := curve.ApplyXP(1, 0, 50, math.MaxInt64)

	assert.True(t, out.LeveledUp)
	assert.Less(t, out.NewXP, out.NewXPNext)
}

func TestApplyXP_FlatCurveHugeGain(t *testing.T) {
	curve := DefaultCurve()

	out := curve.ApplyXP(1, 0, 50, 5_000_000_000)

	assert.Equal(t, 100_000_001, out.NewLevel)
	assert.Equal(t, 100_000_000, out.LevelsGained)
	assert.Equal(t, int64(0), out.NewXP)
	assert.Equal(t, int64(50), out.NewXPNext)
}

func TestApplyXP_FlatCurveMatchesStepwise(t *testing.T) {
	tests := []struct {
		name      string
		level     int
		xp        int64
		xpNext    int64
		gained    int64
		wantLevel int
		wantXP    int64
	}{
		{"three levels", 1, 40, 50, 130, 4, 20},
		{"stored threshold differs from curve", 1, 0, 30, 100, 3, 20},
		{"exact boundary", 2, 0, 50, 100, 4, 0},
		{"no level-up", 3, 10, 50, 39, 3, 49},
	}
	curve := DefaultCurve()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := curve.ApplyXP(tt.level, tt.xp, tt.xpNext, tt.gained)
			assert.Equal(t, tt.wantLevel, out.NewLevel)
			assert.Equal(t, tt.wantXP, out.NewXP)
			assert.Equal(t, tt.wantLevel-tt.level, out.LevelsGained)
			assert.Equal(t, int64(50), out.NewXPNext)
		})
	}
}

func TestApplyXP_FlatCurveSaturatesLevel(t *testing.T) {
	curve := Curve{BaseThreshold: 1, GrowthFactor: 1}

	out := curve.ApplyXP(math.MaxInt-1, 0, 1, math.MaxInt64)

	assert.Equal(t, math.MaxInt, out.NewLevel)
	assert.True(t, out.LeveledUp)
}

func TestXPForPoints(t *testing.T) {
	assert.Equal(t, int64(20), XPForPoints(20, 1))
	assert.Equal(t, int64(30), XPForPoints(20, 1.5))
	assert.Equal(t, int64(0), XPForPoints(0, 1))
	assert.Equal(t, int64(0), XPForPoints(-5, 1))
	assert.Equal(t, int64(0), XPForPoints(20, 0))
}
