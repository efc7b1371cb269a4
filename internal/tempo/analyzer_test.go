package tempo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/walking_synth/internal/step"
)

func steps(a *Analyzer, ts ...int64) State {
	var s State
	for _, t := range ts {
		s = a.OnStep(step.Event{Timestamp: t})
	}
	return s
}

func TestAnalyzerNoTempoBeforeTwoSteps(t *testing.T) {
	a := NewAnalyzer(4, 3*time.Second)
	assert.Equal(t, State{}, a.Current())

	s := steps(a, 100)
	assert.Equal(t, uint64(1), s.StepCount)
	assert.True(t, s.HasLastStep)
	assert.Equal(t, int64(100), s.LastStepMs)
	assert.Zero(t, s.TempoBPM)
	assert.Zero(t, s.Intervals)
}

func TestAnalyzerWalkingSequence(t *testing.T) {
	a := NewAnalyzer(4, 3*time.Second)
	s := steps(a, 100, 600, 1100)

	assert.Equal(t, uint64(3), s.StepCount)
	assert.Equal(t, 2, s.Intervals)
	assert.InDelta(t, 120.0, s.TempoBPM, 1e-9)
	assert.Equal(t, 120, s.Tempo())
	assert.Equal(t, s, a.Current())
}

func TestAnalyzerRollingWindowEvictsOldest(t *testing.T) {
	a := NewAnalyzer(2, 3*time.Second)
	// intervals 1000, 500, 250 -> window keeps {500, 250}
	s := steps(a, 0, 1000, 1500, 1750)
	assert.Equal(t, 2, s.Intervals)
	assert.InDelta(t, 60000/375.0, s.TempoBPM, 1e-9)
}

func TestAnalyzerSingleIntervalWindow(t *testing.T) {
	a := NewAnalyzer(1, 3*time.Second)
	s := steps(a, 0, 500, 1500)
	assert.InDelta(t, 60.0, s.TempoBPM, 1e-9)
}

func TestAnalyzerGapResetsWindow(t *testing.T) {
	a := NewAnalyzer(4, 3*time.Second)
	s := steps(a, 0, 500, 1000)
	require.InDelta(t, 120.0, s.TempoBPM, 1e-9)

	// 3100ms pause: the stale interval is discarded, not averaged
	s = a.OnStep(step.Event{Timestamp: 4100})
	assert.Equal(t, uint64(4), s.StepCount)
	assert.Zero(t, s.TempoBPM)
	assert.Zero(t, s.Intervals)
	assert.Equal(t, int64(4100), s.LastStepMs)

	s = a.OnStep(step.Event{Timestamp: 4700})
	assert.Equal(t, 1, s.Intervals)
	assert.InDelta(t, 100.0, s.TempoBPM, 1e-9)
}

func TestAnalyzerGapAtTimeoutIsAveraged(t *testing.T) {
	a := NewAnalyzer(4, 3*time.Second)
	s := steps(a, 0, 3000)
	assert.Equal(t, 1, s.Intervals)
	assert.InDelta(t, 20.0, s.TempoBPM, 1e-9)
}

func TestAnalyzerOutOfOrderStepIgnoredForTempo(t *testing.T) {
	a := NewAnalyzer(4, 3*time.Second)
	s := steps(a, 1000, 1500, 1400)
	assert.Equal(t, uint64(3), s.StepCount)
	assert.Equal(t, int64(1500), s.LastStepMs)
	assert.Equal(t, 1, s.Intervals)
	assert.InDelta(t, 120.0, s.TempoBPM, 1e-9)
}

func TestAnalyzerExpire(t *testing.T) {
	a := NewAnalyzer(4, 3*time.Second)
	steps(a, 0, 500)

	_, changed := a.Expire(3500)
	assert.False(t, changed)

	s, changed := a.Expire(3501)
	require.True(t, changed)
	assert.Zero(t, s.TempoBPM)
	assert.Equal(t, uint64(2), s.StepCount)

	_, changed = a.Expire(10000)
	assert.False(t, changed, "already expired")
}

func TestAnalyzerResetIdempotent(t *testing.T) {
	a := NewAnalyzer(4, 3*time.Second)
	steps(a, 0, 500, 1000)

	a.Reset()
	once := a.Current()
	a.Reset()
	twice := a.Current()

	assert.Equal(t, State{}, once)
	assert.Equal(t, once, twice)

	// window is empty after reset too
	s := steps(a, 5000, 5600)
	assert.Equal(t, 1, s.Intervals)
	assert.InDelta(t, 100.0, s.TempoBPM, 1e-9)
}

func TestAnalyzerStepCountMonotonic(t *testing.T) {
	a := NewAnalyzer(3, 3*time.Second)
	var prev uint64
	for ts := int64(0); ts < 60000; ts += 700 {
		s := a.OnStep(step.Event{Timestamp: ts})
		require.Equal(t, prev+1, s.StepCount)
		prev = s.StepCount
	}
}

func TestAnalyzerSnapshotsAreCopies(t *testing.T) {
	a := NewAnalyzer(4, 3*time.Second)
	s := steps(a, 0, 500)
	s.StepCount = 99
	assert.Equal(t, uint64(2), a.Current().StepCount)
}

func TestAnalyzerDefaults(t *testing.T) {
	a := NewAnalyzer(0, 0)
	assert.Equal(t, 1, a.Window())
	assert.Equal(t, DefaultStepTimeout, a.Timeout())

	a = NewAnalyzer(100, time.Second)
	assert.Equal(t, MaxWindow, a.Window())
}
