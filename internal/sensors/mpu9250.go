// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/walking_synth/internal/imu"
)

type mpuReader struct {
	name       string // for logging
	dev        *mpu9250.MPU9250
	accelRange byte
	start      time.Time
}

// NewMPU9250Reader initializes an MPU9250 over SPI and returns a Reader
// producing accelerometer samples in m/s². Timestamps are milliseconds
// since the reader was created.
func NewMPU9250Reader(name, spiDev, csPin string, accelRange byte) (imu.Reader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: periph host init: %w", name, err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("%s IMU: CS pin %q not found", name, csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: SPI transport (%s): %w", name, spiDev, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: device creation: %w", name, err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: initialization: %w", name, err)
	}

	if err := dev.SetAccelRange(accelRange); err != nil {
		return nil, fmt.Errorf("%s IMU: set accel range: %w", name, err)
	}
	log.Printf("%s IMU: accelerometer range set to %d (±%.0fg)", name, accelRange, 32768/imu.CountsPerG(accelRange))

	// a failed self-test or calibration is not fatal for step detection
	if res, err := dev.SelfTest(); err != nil {
		log.Printf("Warning: %s IMU self-test failed: %v", name, err)
	} else {
		log.Printf("%s IMU self-test passed, accel deviation X: %.2f%% Y: %.2f%% Z: %.2f%%",
			name, res.AccelDeviation.X, res.AccelDeviation.Y, res.AccelDeviation.Z)
	}
	if err := dev.Calibrate(); err != nil {
		log.Printf("Warning: %s IMU calibration failed: %v", name, err)
	}

	return &mpuReader{
		name:       name,
		dev:        dev,
		accelRange: accelRange,
		start:      time.Now(),
	}, nil
}

// ReadSample reads the three accelerometer axes.
func (r *mpuReader) ReadSample() (imu.Sample, error) {
	ts := time.Since(r.start).Milliseconds()

	ax, err := r.dev.GetAccelerationX()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("%s IMU accel X: %w", r.name, err)
	}
	ay, err := r.dev.GetAccelerationY()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("%s IMU accel Y: %w", r.name, err)
	}
	az, err := r.dev.GetAccelerationZ()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("%s IMU accel Z: %w", r.name, err)
	}

	raw := imu.Raw{Source: r.name, Ax: ax, Ay: ay, Az: az}
	return raw.ToSample(ts, r.accelRange), nil
}
