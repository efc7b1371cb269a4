package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/walking_synth/internal/app"
	"github.com/relabs-tech/walking_synth/internal/config"
)

func main() {
	configPath := flag.String("config", "./walking_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting walking console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	log.Println("keys: + / - threshold, s save, r reset, start, stop")

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
