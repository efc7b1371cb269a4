package app

import (
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/walking_synth/internal/config"
	"github.com/relabs-tech/walking_synth/internal/pipeline"
	"github.com/relabs-tech/walking_synth/internal/transport"
)

// subscribeStatus delivers stepd's status to fn from wherever stepd
// publishes it: the MQTT tempo topic, or NATS when TRANSPORT=nats.
// name is the service's client ID, also used as its NATS connection name.
func subscribeStatus(cfg *config.Config, client mqtt.Client, name string, fn func(transport.Status)) (pipeline.Subscription, error) {
	if cfg.UsesMQTT() {
		sub, err := transport.SubscribeStatus(client, cfg.TopicTempo, fn)
		if err != nil {
			return nil, err
		}
		log.Printf("%s: subscribed to %s", name, cfg.TopicTempo)
		return sub, nil
	}

	nc, err := transport.ConnectNATS(cfg.NATSURL, name)
	if err != nil {
		return nil, err
	}
	sub, err := transport.SubscribeStatusNATS(nc, cfg.NATSSubjectTempo, fn)
	if err != nil {
		nc.Close()
		return nil, err
	}
	log.Printf("%s: subscribed to NATS %s", name, cfg.NATSSubjectTempo)
	return pipeline.NewSubscription(func() {
		sub.Unsubscribe()
		transport.DrainNATS(nc)
	}), nil
}
