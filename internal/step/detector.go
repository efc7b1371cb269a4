// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package step detects walking steps as rising-edge threshold crossings of a
// conditioned acceleration signal.
package step

import (
	"time"

	"github.com/relabs-tech/walking_synth/internal/signals"
)

// DefaultRefractory is the minimum spacing between two steps.
const DefaultRefractory = 250 * time.Millisecond

// Event is a confirmed step.
type Event struct {
	Timestamp int64 `json:"ts_ms"`
}

// Stats counts detector activity since the last Reset.
type Stats struct {
	RisingEdges int `json:"rising_edges"`
	Steps       int `json:"steps"`
	Suppressed  int `json:"suppressed"` // rising edges inside the refractory period
}

// Detector emits a step on every rising edge that is at least Refractory
// after the previous step. It is not safe for concurrent use; the threshold
// it reads is.
type Detector struct {
	threshold    *Threshold
	refractoryMs int64

	armed    bool // last sample was at or below threshold
	lastStep int64
	haveStep bool

	stats Stats
}

// NewDetector returns a detector reading th on every sample.
// A non-positive refractory uses DefaultRefractory.
func NewDetector(th *Threshold, refractory time.Duration) *Detector {
	if refractory <= 0 {
		refractory = DefaultRefractory
	}
	return &Detector{
		threshold:    th,
		refractoryMs: refractory.Milliseconds(),
	}
}

// OnSample feeds one conditioned value and returns a step event if the value
// completes a rising edge outside the refractory period.
func (d *Detector) OnSample(v signals.Value) (Event, bool) {
	level := d.threshold.Get()

	if v.Scalar <= level {
		d.armed = true
		return Event{}, false
	}

	// above threshold
	if !d.armed {
		return Event{}, false
	}
	d.armed = false
	d.stats.RisingEdges++

	if d.haveStep && v.Timestamp-d.lastStep < d.refractoryMs {
		d.stats.Suppressed++
		return Event{}, false
	}

	d.lastStep = v.Timestamp
	d.haveStep = true
	d.stats.Steps++
	return Event{Timestamp: v.Timestamp}, true
}

func (d *Detector) last() (int64, bool) { return d.lastStep, d.haveStep }

func (d *Detector) Stats() Stats { return d.stats }

func (d *Detector) refractory() time.Duration {
	return time.Duration(d.refractoryMs) * time.Millisecond
}

// Reset clears the edge state and the last step. The threshold is kept.
func (d *Detector) Reset() {
	d.armed = false
	d.lastStep = 0
	d.haveStep = false
	d.stats = Stats{}
}
