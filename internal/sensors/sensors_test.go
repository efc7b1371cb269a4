package sensors

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/walking_synth/internal/imu"
	"github.com/relabs-tech/walking_synth/internal/pipeline"
	"github.com/relabs-tech/walking_synth/internal/step"
)

func TestMockWalkerCadence(t *testing.T) {
	for _, spm := range []float64{100, 120} {
		w := newMockWalker(spm, time.Now, 42)
		p := pipeline.New(pipeline.DefaultConfig(), step.NewDefaultThreshold(), nil)

		for ms := 0; ms <= 8000; ms += 20 {
			p.Process(w.at(time.Duration(ms) * time.Millisecond))
		}

		st := p.Snapshot()
		assert.InDelta(t, spm, st.TempoBPM, 3, "cadence %v", spm)
		assert.InDelta(t, spm*8/60, float64(st.StepCount), 2)
	}
}

func TestMockWalkerStandingStill(t *testing.T) {
	w := newMockWalker(110, time.Now, 1)
	s := w.at(0)
	assert.InDelta(t, imu.StandardGravity, s.Magnitude(), 1.0)
	assert.Equal(t, int64(0), s.Timestamp)
	assert.Equal(t, "mock", s.Source)
	assert.True(t, s.Valid())
}

func TestMockWalkerUsesClock(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	w := newMockWalker(110, clock, 1)

	now = now.Add(1500 * time.Millisecond)
	s, err := w.ReadSample()
	require.NoError(t, err)
	assert.Equal(t, int64(1500), s.Timestamp)
}

type countingReader struct {
	n      atomic.Int64
	failOn func(n int64) bool
}

func (r *countingReader) ReadSample() (imu.Sample, error) {
	n := r.n.Add(1)
	if r.failOn != nil && r.failOn(n) {
		return imu.Sample{}, errors.New("bus glitch")
	}
	return imu.Sample{Timestamp: n, Az: imu.StandardGravity}, nil
}

type collector struct {
	mu      sync.Mutex
	samples []imu.Sample
}

func (c *collector) handle(s imu.Sample) {
	c.mu.Lock()
	c.samples = append(c.samples, s)
	c.mu.Unlock()
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

func (c *collector) all() []imu.Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]imu.Sample(nil), c.samples...)
}

func TestPollerDeliversUntilUnsubscribed(t *testing.T) {
	r := &countingReader{}
	p := NewPoller(r, 2*time.Millisecond)
	c := &collector{}

	sub, err := p.Subscribe(c.handle)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return c.len() >= 5 }, time.Second, time.Millisecond)

	sub.Unsubscribe()
	sub.Unsubscribe()
	n := c.len()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, c.len())
}

func TestPollerSkipsReadErrors(t *testing.T) {
	r := &countingReader{failOn: func(n int64) bool { return n%2 == 0 }}
	p := NewPoller(r, time.Millisecond)
	c := &collector{}

	sub, err := p.Subscribe(c.handle)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.len() >= 4 }, time.Second, time.Millisecond)
	sub.Unsubscribe()

	for _, s := range c.all() {
		assert.Equal(t, int64(1), s.Timestamp%2)
	}
}

func TestPollerSingleSubscriber(t *testing.T) {
	p := NewPoller(&countingReader{}, time.Millisecond)

	sub, err := p.Subscribe(func(imu.Sample) {})
	require.NoError(t, err)

	_, err = p.Subscribe(func(imu.Sample) {})
	require.Error(t, err)

	sub.Unsubscribe()

	sub, err = p.Subscribe(func(imu.Sample) {})
	require.NoError(t, err)
	sub.Unsubscribe()
}

func TestPollerDrivesPipeline(t *testing.T) {
	p := NewPoller(&countingReader{}, time.Millisecond)
	pl := pipeline.New(pipeline.DefaultConfig(), nil, p)

	require.NoError(t, pl.Start())
	require.Eventually(t, func() bool {
		_, ok := pl.Signal()
		return ok
	}, time.Second, time.Millisecond)
	pl.Stop()
	assert.False(t, pl.Running())
}
