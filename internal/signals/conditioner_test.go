package signals

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/walking_synth/internal/imu"
)

func newUnitConditioner(mode Mode) *Conditioner {
	return NewConditioner(Options{Mode: mode, Kinds: KindAll, Alpha: 0.9, Scale: 1})
}

func TestConditionMagnitude(t *testing.T) {
	c := newUnitConditioner(ModeMagnitude)

	v := c.Condition(imu.Sample{Timestamp: 10, Ax: 3, Ay: 4, Az: 0})
	assert.Equal(t, int64(10), v.Timestamp)
	assert.InDelta(t, 5.0, v.Scalar, 1e-9)
	assert.InDelta(t, 5.0, v.Magnitude, 1e-9)
	assert.False(t, v.Fault)
}

func TestConditionScale(t *testing.T) {
	c := NewConditioner(DefaultOptions())
	v := c.Condition(imu.Sample{Az: imu.StandardGravity})
	assert.InDelta(t, 98.1, v.Scalar, 1e-9)
}

func TestGravityDiffSeedsFromFirstSample(t *testing.T) {
	c := newUnitConditioner(ModeGravityDiff)
	assert.InDelta(t, imu.StandardGravity, c.Baseline(), 1e-9)

	v := c.Condition(imu.Sample{Az: 12})
	assert.InDelta(t, 0.0, v.Scalar, 1e-9, "first sample must not spike")
	assert.InDelta(t, 12.0, c.Baseline(), 1e-9)
}

func TestGravityDiffLowPass(t *testing.T) {
	c := newUnitConditioner(ModeGravityDiff)
	c.Condition(imu.Sample{Az: 10})

	v := c.Condition(imu.Sample{Az: 20})
	// g' = 0.9*10 + 0.1*20 = 11
	assert.InDelta(t, 11.0, c.Baseline(), 1e-9)
	assert.InDelta(t, 9.0, v.Scalar, 1e-9)
	assert.InDelta(t, 20.0, v.Magnitude, 1e-9)
	assert.InDelta(t, 9.0, v.GravityDiff, 1e-9)

	// baseline only moves by the filter step, never jumps to the input
	for i := 0; i < 5; i++ {
		prev := c.Baseline()
		c.Condition(imu.Sample{Az: 100})
		assert.InDelta(t, 0.9*prev+0.1*100, c.Baseline(), 1e-9)
	}
}

func TestNonFiniteSampleHoldsLastValue(t *testing.T) {
	c := newUnitConditioner(ModeMagnitude)
	c.Condition(imu.Sample{Timestamp: 1, Az: 7})
	baseline := c.Baseline()

	for _, bad := range []imu.Sample{
		{Timestamp: 2, Ax: math.NaN()},
		{Timestamp: 3, Ay: math.Inf(1)},
		{Timestamp: 4, Az: math.Inf(-1)},
	} {
		v := c.Condition(bad)
		assert.True(t, v.Fault)
		assert.Equal(t, bad.Timestamp, v.Timestamp)
		assert.InDelta(t, 7.0, v.Scalar, 1e-9)
	}
	assert.Equal(t, uint64(3), c.Faults())
	assert.Equal(t, baseline, c.Baseline())
}

func TestNonFiniteFirstSample(t *testing.T) {
	c := newUnitConditioner(ModeMagnitude)
	v := c.Condition(imu.Sample{Ax: math.NaN()})
	require.True(t, v.Fault)
	assert.Zero(t, v.Scalar)
}

func TestKindsDoNotChangeDetectionSignal(t *testing.T) {
	c := newUnitConditioner(ModeMagnitude)
	c.SetKinds(KindGravityDiff)

	v := c.Condition(imu.Sample{Az: 9})
	assert.InDelta(t, 9.0, v.Scalar, 1e-9)
	assert.Zero(t, v.Magnitude)
	assert.Equal(t, KindGravityDiff, v.Kinds)

	c.SetKinds(KindNone)
	v = c.Condition(imu.Sample{Az: 11})
	assert.InDelta(t, 11.0, v.Scalar, 1e-9)
	assert.Equal(t, KindNone, v.Kinds)
}

func TestSetModeAtRuntime(t *testing.T) {
	c := newUnitConditioner(ModeMagnitude)
	c.Condition(imu.Sample{Az: 10})
	c.SetMode(ModeGravityDiff)

	v := c.Condition(imu.Sample{Az: 20})
	assert.InDelta(t, 9.0, v.Scalar, 1e-9)
}

func TestConditionerReset(t *testing.T) {
	c := newUnitConditioner(ModeGravityDiff)
	c.Condition(imu.Sample{Az: 30})
	c.Reset()
	assert.InDelta(t, imu.StandardGravity, c.Baseline(), 1e-9)

	v := c.Condition(imu.Sample{Az: 5})
	assert.InDelta(t, 0.0, v.Scalar, 1e-9)
}

func TestParseKinds(t *testing.T) {
	tests := []struct {
		in   string
		want Kinds
	}{
		{"all", KindAll},
		{"magnitude", KindMagnitude},
		{"gravity_diff", KindGravityDiff},
		{"magnitude, gravity_diff", KindAll},
		{"none", KindNone},
		{"", KindNone},
	}
	for _, tt := range tests {
		got, err := ParseKinds(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseKinds("jerk")
	require.Error(t, err)
}

func TestKindsSet(t *testing.T) {
	k := KindAll.Set(KindMagnitude, false)
	assert.Equal(t, KindGravityDiff, k)
	assert.True(t, k.Has(KindGravityDiff))
	assert.False(t, k.Has(KindAll))
	assert.False(t, k.Has(KindNone))
	assert.Equal(t, "all", k.Set(KindMagnitude, true).String())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("gravity_diff")
	require.NoError(t, err)
	assert.Equal(t, ModeGravityDiff, m)
	assert.Equal(t, KindGravityDiff, m.Kind())

	_, err = ParseMode("banana")
	require.Error(t, err)
}
