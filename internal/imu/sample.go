// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "math"

// StandardGravity in m/s².
const StandardGravity = 9.81

// Sample is a single timestamped accelerometer reading.
type Sample struct {
	Source    string  `json:"source,omitempty"` // "left", "right", "mock", ...
	Timestamp int64   `json:"ts_ms"`            // monotonic, milliseconds
	Ax        float64 `json:"ax"`               // m/s²
	Ay        float64 `json:"ay"`
	Az        float64 `json:"az"`
}

// Magnitude returns the Euclidean norm of the acceleration vector.
func (s Sample) Magnitude() float64 {
	return math.Sqrt(s.Ax*s.Ax + s.Ay*s.Ay + s.Az*s.Az)
}

// Valid reports whether all three axes are finite.
func (s Sample) Valid() bool {
	return finite(s.Ax) && finite(s.Ay) && finite(s.Az)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Raw is an accelerometer reading in sensor counts.
type Raw struct {
	Source string `json:"source"`

	Ax int16 `json:"ax"`
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`
}

// accelFullScaleG maps the MPU-9250 ACCEL_FS_SEL code to ±g.
var accelFullScaleG = [4]float64{2, 4, 8, 16}

// CountsPerG returns the accelerometer sensitivity for an ACCEL_FS_SEL code (0-3).
// Out of range codes fall back to ±2g.
func CountsPerG(accelRange byte) float64 {
	if int(accelRange) >= len(accelFullScaleG) {
		accelRange = 0
	}
	return 32768.0 / accelFullScaleG[accelRange]
}

// ToSample converts raw counts into m/s² using the configured accel range.
func (r Raw) ToSample(ts int64, accelRange byte) Sample {
	k := StandardGravity / CountsPerG(accelRange)
	return Sample{
		Source:    r.Source,
		Timestamp: ts,
		Ax:        float64(r.Ax) * k,
		Ay:        float64(r.Ay) * k,
		Az:        float64(r.Az) * k,
	}
}

// Reader is anything that can produce accelerometer samples on demand.
type Reader interface {
	ReadSample() (Sample, error)
}
