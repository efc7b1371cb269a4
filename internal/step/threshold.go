// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package step

import (
	"math"
	"sync/atomic"
)

const (
	DefaultThresholdMin  = 90.0
	DefaultThresholdMax  = 130.0
	DefaultThresholdInit = 110.0
)

// Threshold is the detection level shared between the sample pipeline and
// any control surface (slider, MQTT command, web form).
//
// Reads and writes are single atomic operations on the float64 bit pattern,
// so a reader never observes a partially written value. Writes outside
// [Min, Max] are clamped, never rejected.
type Threshold struct {
	min, max float64
	bits     atomic.Uint64
}

// NewThreshold returns a Threshold bounded to [min, max] holding initial
// (clamped). Swapped bounds are reordered.
func NewThreshold(min, max, initial float64) *Threshold {
	if min > max {
		min, max = max, min
	}
	t := &Threshold{min: min, max: max}
	t.Set(initial)
	return t
}

// NewDefaultThreshold returns the 90..130 threshold starting at 110.
func NewDefaultThreshold() *Threshold {
	return NewThreshold(DefaultThresholdMin, DefaultThresholdMax, DefaultThresholdInit)
}

// Get returns the current threshold.
func (t *Threshold) Get() float64 {
	return math.Float64frombits(t.bits.Load())
}

// Set stores v clamped to the valid range and returns the stored value.
// NaN is ignored and the current value returned.
func (t *Threshold) Set(v float64) float64 {
	if math.IsNaN(v) {
		return t.Get()
	}
	v = t.Clamp(v)
	t.bits.Store(math.Float64bits(v))
	return v
}

// Clamp bounds v to [Min, Max] without storing it.
func (t *Threshold) Clamp(v float64) float64 {
	return math.Min(t.max, math.Max(t.min, v))
}

func (t *Threshold) Min() float64 { return t.min }
func (t *Threshold) Max() float64 { return t.max }

// Span is the slider range (Max - Min).
func (t *Threshold) Span() int {
	return int(math.Round(t.max - t.min))
}

// Progress maps the current value onto a 0..Span slider position.
func (t *Threshold) Progress() int {
	return int(math.Round(t.Get() - t.min))
}

// SetProgress sets the threshold from a 0..Span slider position.
func (t *Threshold) SetProgress(p int) float64 {
	return t.Set(t.min + float64(p))
}
