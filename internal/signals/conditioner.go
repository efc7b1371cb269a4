// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package signals turns raw 3-axis acceleration samples into the scalar
// signals used for step detection and display.
package signals

import (
	"log"
	"sync/atomic"

	"github.com/relabs-tech/walking_synth/internal/imu"
)

const (
	DefaultAlpha = 0.9
	DefaultScale = 10.0 // m/s² -> threshold units (1 g ≈ 98)

	faultLogEvery = 100
)

// Value is the conditioned output for one sample.
type Value struct {
	Timestamp   int64   `json:"ts_ms"`
	Scalar      float64 `json:"scalar"` // detection signal
	Magnitude   float64 `json:"magnitude"`
	GravityDiff float64 `json:"gravity_diff"`
	Kinds       Kinds   `json:"kinds"` // which of Magnitude/GravityDiff are populated
	Fault       bool    `json:"fault,omitempty"`
}

// Options configures a Conditioner.
type Options struct {
	Mode  Mode
	Kinds Kinds   // display signals, the detection signal is always computed
	Alpha float64 // gravity low-pass coefficient, (0,1)
	Scale float64 // multiplier applied to every output
}

// DefaultOptions detects on magnitude and exposes both signals.
func DefaultOptions() Options {
	return Options{
		Mode:  ModeMagnitude,
		Kinds: KindAll,
		Alpha: DefaultAlpha,
		Scale: DefaultScale,
	}
}

// Conditioner computes the conditioned scalar per sample.
// Condition must be called from a single goroutine; SetKinds and SetMode
// may be called from anywhere.
type Conditioner struct {
	alpha float64
	scale float64

	mode  atomic.Int32
	kinds atomic.Uint32

	baseline float64
	seeded   bool

	lastMag  float64
	lastDiff float64
	lastGood float64

	faults atomic.Uint64
}

// NewConditioner returns a Conditioner. Invalid alpha or scale fall back to defaults.
func NewConditioner(opts Options) *Conditioner {
	if opts.Alpha <= 0 || opts.Alpha >= 1 {
		opts.Alpha = DefaultAlpha
	}
	if opts.Scale <= 0 {
		opts.Scale = DefaultScale
	}
	c := &Conditioner{alpha: opts.Alpha, scale: opts.Scale}
	c.mode.Store(int32(opts.Mode))
	c.kinds.Store(uint32(opts.Kinds))
	c.Reset()
	return c
}

// Condition derives the conditioned value for s.
func (c *Conditioner) Condition(s imu.Sample) Value {
	mode := c.Mode()
	kinds := c.Kinds()

	if !s.Valid() {
		n := c.faults.Add(1)
		if n == 1 || n%faultLogEvery == 0 {
			log.Printf("signals: non-finite sample at %d ms (ax=%v ay=%v az=%v), holding %.2f (faults=%d)",
				s.Timestamp, s.Ax, s.Ay, s.Az, c.lastGood, n)
		}
		return c.value(s.Timestamp, c.lastGood, kinds, true)
	}

	mag := s.Magnitude() * c.scale
	if !c.seeded {
		c.baseline = mag
		c.seeded = true
	} else {
		c.baseline = c.alpha*c.baseline + (1-c.alpha)*mag
	}

	c.lastMag = mag
	c.lastDiff = mag - c.baseline

	scalar := c.lastMag
	if mode == ModeGravityDiff {
		scalar = c.lastDiff
	}
	c.lastGood = scalar

	return c.value(s.Timestamp, scalar, kinds, false)
}

func (c *Conditioner) value(ts int64, scalar float64, kinds Kinds, fault bool) Value {
	v := Value{Timestamp: ts, Scalar: scalar, Kinds: kinds & KindAll, Fault: fault}
	if kinds.Has(KindMagnitude) {
		v.Magnitude = c.lastMag
	}
	if kinds.Has(KindGravityDiff) {
		v.GravityDiff = c.lastDiff
	}
	return v
}

// Baseline returns the current gravity estimate in output units.
func (c *Conditioner) Baseline() float64 { return c.baseline }

// Faults returns the number of non-finite samples seen since construction.
func (c *Conditioner) Faults() uint64 { return c.faults.Load() }

func (c *Conditioner) Mode() Mode { return Mode(c.mode.Load()) }

// SetMode switches the detection signal.
func (c *Conditioner) SetMode(m Mode) { c.mode.Store(int32(m)) }

func (c *Conditioner) Kinds() Kinds { return Kinds(c.kinds.Load()) }

// SetKinds changes which signals are exposed. It never affects Scalar.
func (c *Conditioner) SetKinds(k Kinds) { c.kinds.Store(uint32(k & KindAll)) }

// Reset forgets the gravity baseline and the last valid value.
func (c *Conditioner) Reset() {
	c.baseline = imu.StandardGravity * c.scale
	c.seeded = false
	c.lastMag = 0
	c.lastDiff = 0
	c.lastGood = 0
}
