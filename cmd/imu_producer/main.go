// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/walking_synth/internal/app"
	"github.com/relabs-tech/walking_synth/internal/config"
)

func main() {
	configPath := flag.String("config", "./walking_config.txt", "path to configuration file")
	mock := flag.Bool("mock", false, "synthesize a walking gait instead of reading the IMU")
	flag.Parse()

	log.Println("starting walking IMU producer (accelerometer → MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunIMUProducer(*mock); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
