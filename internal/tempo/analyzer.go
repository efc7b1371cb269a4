// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tempo estimates walking cadence (steps per minute) from step events.
package tempo

import (
	"math"
	"time"

	"github.com/relabs-tech/walking_synth/internal/step"
)

const (
	DefaultWindow      = 4
	DefaultStepTimeout = 3 * time.Second
)

// State is an immutable snapshot of the analyzer.
type State struct {
	StepCount   uint64  `json:"step_count"`
	LastStepMs  int64   `json:"last_step_ms"`
	HasLastStep bool    `json:"has_last_step"`
	TempoBPM    float64 `json:"tempo_bpm"` // 0 until an interval is available
	Intervals   int     `json:"intervals"` // intervals averaged into TempoBPM
}

// Tempo returns TempoBPM rounded to whole steps per minute.
func (s State) Tempo() int {
	return int(math.Round(s.TempoBPM))
}

// Analyzer keeps a rolling window of recent inter-step intervals.
// It is not safe for concurrent use; callers hand out State copies.
type Analyzer struct {
	timeoutMs int64
	win       window
	state     State
}

// NewAnalyzer returns an analyzer averaging the last size intervals
// (clamped to 1..MaxWindow). Gaps longer than timeout restart the window;
// a non-positive timeout uses DefaultStepTimeout.
func NewAnalyzer(size int, timeout time.Duration) *Analyzer {
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}
	return &Analyzer{
		timeoutMs: timeout.Milliseconds(),
		win:       newWindow(size),
	}
}

// OnStep records a step and returns the updated state.
func (a *Analyzer) OnStep(ev step.Event) State {
	a.state.StepCount++

	if a.state.HasLastStep {
		interval := ev.Timestamp - a.state.LastStepMs
		switch {
		case interval <= 0:
			// out of order or duplicate timestamp, nothing to average
		case interval > a.timeoutMs:
			a.win.clear()
		default:
			a.win.push(interval)
		}
	}

	if !a.state.HasLastStep || ev.Timestamp > a.state.LastStepMs {
		a.state.LastStepMs = ev.Timestamp
	}
	a.state.HasLastStep = true
	a.refresh()
	return a.state
}

// Expire clears the window when no step has been seen for longer than the
// timeout at nowMs. It reports whether the state changed.
func (a *Analyzer) Expire(nowMs int64) (State, bool) {
	if !a.state.HasLastStep || a.win.len() == 0 {
		return a.state, false
	}
	if nowMs-a.state.LastStepMs <= a.timeoutMs {
		return a.state, false
	}
	a.win.clear()
	a.refresh()
	return a.state, true
}

func (a *Analyzer) refresh() {
	a.state.Intervals = a.win.len()
	if m := a.win.mean(); m > 0 {
		a.state.TempoBPM = 60000 / m
	} else {
		a.state.TempoBPM = 0
	}
}

// Current returns the latest state without modifying it.
func (a *Analyzer) Current() State { return a.state }

// Window returns the configured rolling window size.
func (a *Analyzer) Window() int { return a.win.size }

// Timeout returns the gap after which the window restarts.
func (a *Analyzer) Timeout() time.Duration {
	return time.Duration(a.timeoutMs) * time.Millisecond
}

// Reset zeroes the step count, last step and window.
func (a *Analyzer) Reset() {
	a.win.clear()
	a.state = State{}
}
