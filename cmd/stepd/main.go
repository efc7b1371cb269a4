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
	local := flag.Bool("local", false, "poll the IMU directly instead of subscribing to samples")
	mock := flag.Bool("mock", false, "with -local, use the synthetic walker")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *mock && !*local {
		log.Println("-mock only applies with -local; run imu_producer -mock instead")
	}

	if err := app.RunStepd(*local, *mock); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
