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

	log.Println("starting walking OLED display")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
