package transport

import (
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/walking_synth/internal/imu"
	"github.com/relabs-tech/walking_synth/internal/pipeline"
	"github.com/relabs-tech/walking_synth/internal/signals"
)

// ConnectMQTT connects a client to broker and waits for the handshake.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	return client, nil
}

func subscribe(client mqtt.Client, topic string, cb mqtt.MessageHandler) error {
	token := client.Subscribe(topic, 0, cb)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("MQTT subscribe %s: %w", topic, token.Error())
	}
	return nil
}

func unsubscriber(client mqtt.Client, topic string) pipeline.Subscription {
	return pipeline.NewSubscription(func() {
		if token := client.Unsubscribe(topic); token.WaitTimeout(2*time.Second) && token.Error() != nil {
			log.Printf("MQTT unsubscribe %s: %v", topic, token.Error())
		}
	})
}

// MQTTSource delivers imu.Sample JSON messages from a topic.
type MQTTSource struct {
	client mqtt.Client
	topic  string
}

// NewMQTTSource returns a pipeline.Source reading samples from topic.
func NewMQTTSource(client mqtt.Client, topic string) *MQTTSource {
	return &MQTTSource{client: client, topic: topic}
}

// Subscribe implements pipeline.Source. Malformed payloads are logged and
// dropped.
func (s *MQTTSource) Subscribe(h pipeline.Handler) (pipeline.Subscription, error) {
	var bad int
	err := subscribe(s.client, s.topic, func(_ mqtt.Client, msg mqtt.Message) {
		var sample imu.Sample
		if err := decode(msg.Payload(), &sample); err != nil {
			bad++
			if bad == 1 || bad%100 == 0 {
				log.Printf("%s: dropping malformed sample (%d so far): %v", s.topic, bad, err)
			}
			return
		}
		h(sample)
	})
	if err != nil {
		return nil, err
	}
	return unsubscriber(s.client, s.topic), nil
}

// MQTTPublisher publishes JSON values on a fixed topic without waiting for
// acknowledgement, so it is safe to call from the pipeline goroutine.
type MQTTPublisher struct {
	client   mqtt.Client
	topic    string
	retained bool
}

// NewMQTTPublisher publishes on topic. Retained topics hand the last value
// to late subscribers.
func NewMQTTPublisher(client mqtt.Client, topic string, retained bool) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, retained: retained}
}

// Publish encodes v and sends it.
func (p *MQTTPublisher) Publish(v any) error {
	payload, err := encode(v)
	if err != nil {
		return err
	}
	p.client.Publish(p.topic, 0, p.retained, payload)
	return nil
}

// PublishWait sends v and waits for the client to hand it off.
func (p *MQTTPublisher) PublishWait(v any) error {
	payload, err := encode(v)
	if err != nil {
		return err
	}
	if token := p.client.Publish(p.topic, 0, p.retained, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT publish %s: %w", p.topic, token.Error())
	}
	return nil
}

// SubscribeStatus calls fn with every Status published on topic.
func SubscribeStatus(client mqtt.Client, topic string, fn func(Status)) (pipeline.Subscription, error) {
	err := subscribe(client, topic, func(_ mqtt.Client, msg mqtt.Message) {
		st, err := DecodeStatus(msg.Payload())
		if err != nil {
			log.Printf("%s: %v", topic, err)
			return
		}
		fn(st)
	})
	if err != nil {
		return nil, err
	}
	return unsubscriber(client, topic), nil
}

// SubscribeSignal calls fn with every conditioned signal value published on
// topic.
func SubscribeSignal(client mqtt.Client, topic string, fn func(signals.Value)) (pipeline.Subscription, error) {
	err := subscribe(client, topic, func(_ mqtt.Client, msg mqtt.Message) {
		var v signals.Value
		if err := decode(msg.Payload(), &v); err != nil {
			log.Printf("%s: %v", topic, err)
			return
		}
		fn(v)
	})
	if err != nil {
		return nil, err
	}
	return unsubscriber(client, topic), nil
}

// SubscribeControl applies every Command received on topic to c, then calls
// after (if non-nil) so the caller can publish fresh state. Commands run in
// arrival order on a worker goroutine, never on the MQTT callback, so they
// may start or stop subscriptions on the same client.
func SubscribeControl(client mqtt.Client, topic string, c Controls, after func(Command)) (pipeline.Subscription, error) {
	cmds := make(chan Command, 16)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case cmd := <-cmds:
				if err := Apply(c, cmd); err != nil {
					log.Printf("control: %v", err)
					continue
				}
				if after != nil {
					after(cmd)
				}
			}
		}
	}()

	err := subscribe(client, topic, func(_ mqtt.Client, msg mqtt.Message) {
		var cmd Command
		if err := decode(msg.Payload(), &cmd); err != nil {
			log.Printf("control: %v", err)
			return
		}
		select {
		case cmds <- cmd:
		case <-stop:
		default:
			log.Printf("control: queue full, dropping %q", cmd.Cmd)
		}
	})
	if err != nil {
		close(stop)
		return nil, err
	}

	unsub := unsubscriber(client, topic)
	return pipeline.NewSubscription(func() {
		unsub.Unsubscribe()
		close(stop)
		<-done
	}), nil
}

// SendCommand publishes cmd on the control topic.
func SendCommand(client mqtt.Client, topic string, cmd Command) error {
	return NewMQTTPublisher(client, topic, false).PublishWait(cmd)
}
