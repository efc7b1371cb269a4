package transport

import "log"

// Publisher sends one encoded value. MQTTPublisher and NATSPublisher
// implement it.
type Publisher interface {
	Publish(v any) error
}

// Fanout publishes to several publishers, logging failures instead of
// stopping at the first one.
type Fanout []Publisher

func (f Fanout) Publish(v any) error {
	for _, p := range f {
		if err := p.Publish(v); err != nil {
			log.Printf("publish: %v", err)
		}
	}
	return nil
}
