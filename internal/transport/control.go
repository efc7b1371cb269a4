package transport

import (
	"errors"
	"fmt"
	"math"

	"github.com/relabs-tech/walking_synth/internal/signals"
)

// Controls is the set of operations a Command can trigger.
type Controls interface {
	SetThreshold(v float64) float64
	NudgeThreshold(delta float64) float64
	SaveThreshold() error
	Reset()
	SetKinds(k signals.Kinds)
	Start() error
	Stop()
}

var errUnknownCommand = errors.New("unknown command")

// Apply runs cmd against c.
func Apply(c Controls, cmd Command) error {
	switch cmd.Cmd {
	case CmdThreshold:
		if math.IsNaN(cmd.Value) || math.IsInf(cmd.Value, 0) {
			return fmt.Errorf("threshold: invalid value %v", cmd.Value)
		}
		c.SetThreshold(cmd.Value)
	case CmdNudge:
		c.NudgeThreshold(cmd.Value)
	case CmdSave:
		if err := c.SaveThreshold(); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	case CmdReset:
		c.Reset()
	case CmdKinds:
		k, err := signals.ParseKinds(cmd.Kinds)
		if err != nil {
			return fmt.Errorf("kinds: %w", err)
		}
		c.SetKinds(k)
	case CmdStart:
		if err := c.Start(); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	case CmdStop:
		c.Stop()
	default:
		return fmt.Errorf("%w %q", errUnknownCommand, cmd.Cmd)
	}
	return nil
}
