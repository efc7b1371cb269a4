// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"math/rand"
	"time"

	"github.com/relabs-tech/walking_synth/internal/imu"
)

type mockWalker struct {
	start   time.Time
	now     func() time.Time
	cadence float64 // steps per minute
	swing   float64 // peak vertical acceleration as a fraction of g
	noise   float64 // m/s², uniform
	rng     *rand.Rand
}

// NewMockWalker returns a Reader that synthesizes a walking gait at the
// given cadence: one vertical acceleration bump per step on top of gravity,
// plus a little sensor noise.
func NewMockWalker(cadenceSPM float64) imu.Reader {
	return newMockWalker(cadenceSPM, time.Now, time.Now().UnixNano())
}

func newMockWalker(cadenceSPM float64, now func() time.Time, seed int64) *mockWalker {
	return &mockWalker{
		start:   now(),
		now:     now,
		cadence: cadenceSPM,
		swing:   0.35,
		noise:   0.15,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (m *mockWalker) ReadSample() (imu.Sample, error) {
	elapsed := m.now().Sub(m.start)
	return m.at(elapsed), nil
}

func (m *mockWalker) at(elapsed time.Duration) imu.Sample {
	phase := 2 * math.Pi * (m.cadence / 60) * elapsed.Seconds()
	vertical := imu.StandardGravity * (1 + m.swing*math.Sin(phase))

	jitter := func() float64 { return (2*m.rng.Float64() - 1) * m.noise }

	return imu.Sample{
		Source:    "mock",
		Timestamp: elapsed.Milliseconds(),
		Ax:        0.8*math.Cos(phase/2) + jitter(), // side-to-side sway at half cadence
		Ay:        jitter(),
		Az:        vertical + jitter(),
	}
}
