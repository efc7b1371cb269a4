package transport

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/relabs-tech/walking_synth/internal/pipeline"
)

// ConnectNATS dials url with unlimited reconnects.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("NATS connect %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher publishes JSON values on a fixed subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

func NewNATSPublisher(nc *nats.Conn, subject string) *NATSPublisher {
	return &NATSPublisher{nc: nc, subject: subject}
}

// Publish encodes v and buffers it on the connection.
func (p *NATSPublisher) Publish(v any) error {
	b, err := encode(v)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.subject, b); err != nil {
		return fmt.Errorf("NATS publish %s: %w", p.subject, err)
	}
	return nil
}

// SubscribeStatusNATS calls fn with every Status published on subject.
func SubscribeStatusNATS(nc *nats.Conn, subject string, fn func(Status)) (pipeline.Subscription, error) {
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		st, err := DecodeStatus(msg.Data)
		if err != nil {
			log.Printf("%s: %v", subject, err)
			return
		}
		fn(st)
	})
	if err != nil {
		return nil, fmt.Errorf("NATS subscribe %s: %w", subject, err)
	}
	return pipeline.NewSubscription(func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Printf("NATS unsubscribe %s: %v", subject, err)
		}
	}), nil
}

// DrainNATS drains nc, logging a failed drain.
func DrainNATS(nc *nats.Conn) {
	if err := nc.Drain(); err != nil {
		log.Printf("NATS drain: %v", err)
	}
}
