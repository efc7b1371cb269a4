package sensors

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/walking_synth/internal/imu"
	"github.com/relabs-tech/walking_synth/internal/pipeline"
)

// Poller turns a blocking imu.Reader into a push Source by reading it on a
// ticker. Only one subscription may be active at a time.
type Poller struct {
	reader   imu.Reader
	interval time.Duration

	mu     sync.Mutex
	active bool
}

var errAlreadySubscribed = errors.New("sensors: poller already has a subscriber")

// NewPoller reads r every interval once subscribed.
func NewPoller(r imu.Reader, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	return &Poller{reader: r, interval: interval}
}

// Subscribe starts the read loop. Samples are delivered on the poller's own
// goroutine; Unsubscribe stops the loop and waits for it to exit.
func (p *Poller) Subscribe(h pipeline.Handler) (pipeline.Subscription, error) {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return nil, errAlreadySubscribed
	}
	p.active = true
	p.mu.Unlock()

	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		var readErrors int
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}

			s, err := p.reader.ReadSample()
			if err != nil {
				readErrors++
				if readErrors == 1 || readErrors%100 == 0 {
					log.Printf("IMU read error (%d so far): %v", readErrors, err)
				}
				continue
			}
			h(s)
		}
	}()

	return pipeline.NewSubscription(func() {
		close(stop)
		<-done
		p.mu.Lock()
		p.active = false
		p.mu.Unlock()
	}), nil
}
