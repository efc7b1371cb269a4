// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pipeline wires the signal conditioner, step detector and tempo
// analyzer into one synchronous per-sample chain fed by a Source.
package pipeline

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/walking_synth/internal/imu"
	"github.com/relabs-tech/walking_synth/internal/signals"
	"github.com/relabs-tech/walking_synth/internal/step"
	"github.com/relabs-tech/walking_synth/internal/tempo"
)

// ErrNoSource is returned by Start when the pipeline has no sample source.
var ErrNoSource = errors.New("pipeline: no sample source")

// Config holds the tunables of the chain.
type Config struct {
	Signal       signals.Options
	Refractory   time.Duration
	Window       int
	StepTimeout  time.Duration
	ResumeWindow time.Duration // pauses up to this long keep cadence state; 0 always resets
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		Signal:      signals.DefaultOptions(),
		Refractory:  step.DefaultRefractory,
		Window:      tempo.DefaultWindow,
		StepTimeout: tempo.DefaultStepTimeout,
	}
}

// Pipeline runs raw samples through conditioning, detection and tempo
// estimation and publishes tempo snapshots to its sinks.
type Pipeline struct {
	threshold *step.Threshold

	// mu guards the per-sample state below
	mu        sync.Mutex
	cond      *signals.Conditioner
	det       *step.Detector
	an        *tempo.Analyzer
	lastValue signals.Value
	haveValue bool

	// lifeMu guards the subscription lifecycle
	lifeMu       sync.Mutex
	src          Source
	sub          Subscription
	gen          atomic.Uint64
	stoppedAt    time.Time
	resumeWindow time.Duration
	now          func() time.Time

	// readable from sinks without lifeMu
	running   atomic.Bool
	startedAt atomic.Int64 // unix nanos

	sinkMu      sync.RWMutex
	sinks       []Sink
	signalSinks []SignalSink
}

// New builds a pipeline around th, which stays owned by the caller and may be
// changed from any goroutine. src may be nil when samples are fed with Process.
func New(cfg Config, th *step.Threshold, src Source) *Pipeline {
	if th == nil {
		th = step.NewDefaultThreshold()
	}
	return &Pipeline{
		threshold:    th,
		cond:         signals.NewConditioner(cfg.Signal),
		det:          step.NewDetector(th, cfg.Refractory),
		an:           tempo.NewAnalyzer(cfg.Window, cfg.StepTimeout),
		src:          src,
		resumeWindow: cfg.ResumeWindow,
		now:          time.Now,
	}
}

// AddSink registers s for tempo snapshots.
func (p *Pipeline) AddSink(s Sink) {
	p.sinkMu.Lock()
	p.sinks = append(p.sinks, s)
	p.sinkMu.Unlock()
}

// AddSignalSink registers s for conditioned values.
func (p *Pipeline) AddSignalSink(s SignalSink) {
	p.sinkMu.Lock()
	p.signalSinks = append(p.signalSinks, s)
	p.sinkMu.Unlock()
}

// Process runs one sample through the chain. It returns the tempo snapshot
// and true when the sample produced a step or expired a stale tempo.
func (p *Pipeline) Process(s imu.Sample) (tempo.State, bool) {
	p.mu.Lock()
	v := p.cond.Condition(s)
	p.lastValue = v
	p.haveValue = true

	var (
		st      tempo.State
		changed bool
	)
	if ev, ok := p.det.OnSample(v); ok {
		st, changed = p.an.OnStep(ev), true
	} else {
		st, changed = p.an.Expire(v.Timestamp)
	}
	p.mu.Unlock()

	p.emitSignal(v)
	if changed {
		p.emitTempo(st)
	}
	return st, changed
}

func (p *Pipeline) emitTempo(st tempo.State) {
	p.sinkMu.RLock()
	sinks := append([]Sink(nil), p.sinks...)
	p.sinkMu.RUnlock()
	for _, s := range sinks {
		s.OnTempo(st)
	}
}

func (p *Pipeline) emitSignal(v signals.Value) {
	p.sinkMu.RLock()
	sinks := append([]SignalSink(nil), p.signalSinks...)
	p.sinkMu.RUnlock()
	for _, s := range sinks {
		s.OnSignal(v)
	}
}

// Start subscribes to the source. Calling Start on a running pipeline is a
// no-op. After a Stop, state is reset unless the pause was within the
// resume window.
func (p *Pipeline) Start() error {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	if p.sub != nil {
		return nil
	}
	if p.src == nil {
		return ErrNoSource
	}

	if !p.stoppedAt.IsZero() {
		paused := p.now().Sub(p.stoppedAt)
		if p.resumeWindow <= 0 || paused > p.resumeWindow {
			log.Printf("pipeline: resuming after %s, resetting cadence", paused.Round(time.Millisecond))
			p.Reset()
		} else {
			log.Printf("pipeline: resuming after %s, keeping cadence window", paused.Round(time.Millisecond))
		}
	}

	gen := p.gen.Add(1)
	sub, err := p.src.Subscribe(func(s imu.Sample) {
		// drop deliveries from a subscription that has been released
		if p.gen.Load() != gen {
			return
		}
		p.Process(s)
	})
	if err != nil {
		p.gen.Add(1)
		return fmt.Errorf("pipeline: subscribe: %w", err)
	}
	p.sub = sub
	p.startedAt.Store(p.now().UnixNano())
	p.running.Store(true)
	log.Println("pipeline: started")
	return nil
}

// Stop releases the source subscription and freezes the current state.
// It is safe to call repeatedly.
func (p *Pipeline) Stop() {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	if p.sub == nil {
		return
	}
	p.gen.Add(1)
	p.running.Store(false)
	p.sub.Unsubscribe()
	p.sub = nil
	p.stoppedAt = p.now()
	log.Println("pipeline: stopped")
}

// Running reports whether the pipeline holds a source subscription.
func (p *Pipeline) Running() bool { return p.running.Load() }

// Elapsed returns the time since the last Start, or 0 when stopped.
func (p *Pipeline) Elapsed() time.Duration {
	if !p.running.Load() {
		return 0
	}
	return time.Duration(p.now().UnixNano() - p.startedAt.Load())
}

// Reset clears conditioner, detector and analyzer state, keeping the
// threshold, and publishes the zeroed snapshot.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	p.cond.Reset()
	p.det.Reset()
	p.an.Reset()
	p.haveValue = false
	st := p.an.Current()
	p.mu.Unlock()

	p.emitTempo(st)
}

// Snapshot returns a copy of the current tempo state.
func (p *Pipeline) Snapshot() tempo.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.an.Current()
}

// Signal returns the most recent conditioned value.
func (p *Pipeline) Signal() (signals.Value, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastValue, p.haveValue
}

// DetectorStats returns edge counters since the last reset.
func (p *Pipeline) DetectorStats() step.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.det.Stats()
}

// Threshold returns the shared threshold.
func (p *Pipeline) Threshold() *step.Threshold { return p.threshold }

// SetThreshold clamps and stores v; the next processed sample sees it.
func (p *Pipeline) SetThreshold(v float64) float64 { return p.threshold.Set(v) }

// Kinds returns the enabled display signals.
func (p *Pipeline) Kinds() signals.Kinds { return p.cond.Kinds() }

// SetKinds changes the enabled display signals without touching detection.
func (p *Pipeline) SetKinds(k signals.Kinds) { p.cond.SetKinds(k) }

// Faults returns the number of malformed samples absorbed so far.
func (p *Pipeline) Faults() uint64 { return p.cond.Faults() }
