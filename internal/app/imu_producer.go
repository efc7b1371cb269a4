package app

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/walking_synth/internal/config"
	"github.com/relabs-tech/walking_synth/internal/imu"
	"github.com/relabs-tech/walking_synth/internal/sensors"
	"github.com/relabs-tech/walking_synth/internal/transport"
)

// newReader opens the accelerometer, or the synthetic walker when mock is set.
func newReader(cfg *config.Config, mock bool) (imu.Reader, error) {
	if mock {
		log.Printf("using mock walker at %.0f steps/min", cfg.MockCadenceSPM)
		return sensors.NewMockWalker(cfg.MockCadenceSPM), nil
	}
	return sensors.NewMPU9250Reader("body", cfg.IMUSPIDevice, cfg.IMUCSPin, cfg.IMUAccelRange)
}

func sampleInterval(cfg *config.Config) time.Duration {
	return time.Duration(cfg.IMUSampleInterval) * time.Millisecond
}

// RunIMUProducer publishes accelerometer samples on TopicSamples until
// interrupted.
func RunIMUProducer(mock bool) error {
	log.Println("starting walking IMU producer")

	cfg := config.Get()

	reader, err := newReader(cfg, mock)
	if err != nil {
		return err
	}

	client, err := transport.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("connected to MQTT broker at %s, publishing on %s every %dms",
		cfg.MQTTBroker, cfg.TopicSamples, cfg.IMUSampleInterval)

	out := transport.NewMQTTPublisher(client, cfg.TopicSamples, false)

	var published, failed int
	sub, err := sensors.NewPoller(reader, sampleInterval(cfg)).Subscribe(func(s imu.Sample) {
		if err := out.Publish(s); err != nil {
			failed++
			if failed == 1 || failed%100 == 0 {
				log.Printf("sample publish error (%d so far): %v", failed, err)
			}
			return
		}
		published++
	})
	if err != nil {
		return err
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	sub.Unsubscribe()
	log.Printf("IMU producer: shutting down after %d samples", published)
	return nil
}
