package app

import (
	"fmt"
	"image"
	"log"
	"slices"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/walking_synth/internal/config"
	"github.com/relabs-tech/walking_synth/internal/transport"
)

const (
	oledWidth  = 128
	oledHeight = 64
	lineHeight = 13
)

// displayLines is the text shown on the OLED for st.
func displayLines(st transport.Status, have bool) []string {
	if !have {
		return []string{"", "Walking synth", "Waiting..."}
	}
	state := ""
	if !st.Running {
		state = " (paused)"
	}
	return []string{
		fmt.Sprintf("Steps: %3d", st.DisplaySteps()),
		fmt.Sprintf("Tempo: %3d spm", st.Tempo()),
		fmt.Sprintf("Thr:   %5.1f", st.Threshold),
		fmt.Sprintf("Time:  %s%s", st.Elapsed(), state),
	}
}

func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, oledWidth, oledHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(0, (i+1)*lineHeight+2)
		drawer.DrawString(line)
	}
	return img
}

// RunDisplay shows stepd's status on an SSD1306 OLED.
func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: initialized")

	if err := dev.Draw(dev.Bounds(), renderLines(displayLines(transport.Status{}, false)), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	var (
		mu   sync.RWMutex
		last transport.Status
		have bool
	)

	client, err := transport.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	sub, err := subscribeStatus(cfg, client, cfg.MQTTClientIDDisplay, func(st transport.Status) {
		mu.Lock()
		last, have = st, true
		mu.Unlock()
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	var shown []string
	for range ticker.C {
		mu.RLock()
		lines := displayLines(last, have)
		mu.RUnlock()

		if slices.Equal(lines, shown) {
			continue
		}
		if err := dev.Draw(dev.Bounds(), renderLines(lines), image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
			continue
		}
		shown = lines
	}
	return nil
}

