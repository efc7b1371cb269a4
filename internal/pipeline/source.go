package pipeline

import (
	"sync"

	"github.com/relabs-tech/walking_synth/internal/imu"
	"github.com/relabs-tech/walking_synth/internal/signals"
	"github.com/relabs-tech/walking_synth/internal/tempo"
)

// Handler receives pushed samples.
type Handler func(imu.Sample)

// Source pushes accelerometer samples to a handler until unsubscribed.
// Sample intervals may be irregular.
type Source interface {
	Subscribe(h Handler) (Subscription, error)
}

// Subscription releases a Source registration. Unsubscribe must be safe to
// call more than once.
type Subscription interface {
	Unsubscribe()
}

type onceSubscription struct {
	once sync.Once
	stop func()
}

// NewSubscription wraps stop so that it runs at most once.
func NewSubscription(stop func()) Subscription {
	return &onceSubscription{stop: stop}
}

func (s *onceSubscription) Unsubscribe() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}

// Sink receives tempo snapshots. It is called on the pipeline goroutine and
// must return quickly. Sinks may read pipeline state but must not call
// Start or Stop.
type Sink interface {
	OnTempo(tempo.State)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(tempo.State)

func (f SinkFunc) OnTempo(s tempo.State) { f(s) }

// SignalSink receives every conditioned value, for diagnostic display.
type SignalSink interface {
	OnSignal(signals.Value)
}

// SignalSinkFunc adapts a function to SignalSink.
type SignalSinkFunc func(signals.Value)

func (f SignalSinkFunc) OnSignal(v signals.Value) { f(v) }
