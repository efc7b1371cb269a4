// Package transport carries samples, tempo snapshots and control commands
// between the walking services over MQTT and NATS.
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/relabs-tech/walking_synth/internal/signals"
	"github.com/relabs-tech/walking_synth/internal/tempo"
)

// MaxDisplaySteps wraps the step counter on small displays: shown counts
// run 0..998.
const MaxDisplaySteps = 999

// Status is the snapshot stepd publishes on every tempo change and
// periodically while running.
type Status struct {
	tempo.State

	Threshold    float64       `json:"threshold"`
	ThresholdMin float64       `json:"threshold_min"`
	ThresholdMax float64       `json:"threshold_max"`
	Running      bool          `json:"running"`
	ElapsedMs    int64         `json:"elapsed_ms"`
	Kinds        signals.Kinds `json:"kinds"`
	Faults       uint64        `json:"faults,omitempty"`
}

// DisplaySteps returns the step count wrapped for a three digit display.
func (s Status) DisplaySteps() uint64 {
	return s.StepCount % MaxDisplaySteps
}

// Elapsed formats ElapsedMs as m:ss.
func (s Status) Elapsed() string {
	secs := s.ElapsedMs / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// Control command names.
const (
	CmdThreshold = "threshold" // Value is the new threshold
	CmdNudge     = "nudge"     // Value is added to the threshold
	CmdSave      = "save"
	CmdReset     = "reset"
	CmdKinds     = "kinds" // Kinds is a comma list, "all" or "none"
	CmdStart     = "start"
	CmdStop      = "stop"
)

// Command is a control message sent to stepd.
type Command struct {
	Cmd   string  `json:"cmd"`
	Value float64 `json:"value,omitempty"`
	Kinds string  `json:"kinds,omitempty"`
}

func encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal %T: %w", v, err)
	}
	return b, nil
}

func decode(b []byte, v any) error {
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("transport: unmarshal %T: %w", v, err)
	}
	return nil
}

// DecodeStatus parses a Status payload.
func DecodeStatus(b []byte) (Status, error) {
	var s Status
	err := decode(b, &s)
	return s, err
}
