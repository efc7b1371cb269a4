package signals

import (
	"fmt"
	"strings"
)

// Mode selects which conditioned signal drives step detection.
type Mode int

const (
	ModeMagnitude   Mode = iota // |a|
	ModeGravityDiff             // |a| - low-pass(|a|)
)

func (m Mode) String() string {
	switch m {
	case ModeMagnitude:
		return "magnitude"
	case ModeGravityDiff:
		return "gravity_diff"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Kind returns the flag corresponding to the detection signal.
func (m Mode) Kind() Kinds {
	if m == ModeGravityDiff {
		return KindGravityDiff
	}
	return KindMagnitude
}

// ParseMode accepts "magnitude" or "gravity_diff".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "magnitude", "mag":
		return ModeMagnitude, nil
	case "gravity_diff", "gravdiff", "diff":
		return ModeGravityDiff, nil
	}
	return 0, fmt.Errorf("unknown signal mode %q", s)
}

// Kinds is the set of conditioned signals exposed for display.
type Kinds uint8

const (
	KindMagnitude Kinds = 1 << iota
	KindGravityDiff

	KindNone Kinds = 0
	KindAll        = KindMagnitude | KindGravityDiff
)

// Has reports whether every flag in k is enabled.
func (s Kinds) Has(k Kinds) bool { return k != 0 && s&k == k }

func (s Kinds) With(k Kinds) Kinds    { return s | k }
func (s Kinds) Without(k Kinds) Kinds { return s &^ k }

// Set enables or disables k.
func (s Kinds) Set(k Kinds, on bool) Kinds {
	if on {
		return s.With(k)
	}
	return s.Without(k)
}

func (s Kinds) String() string {
	switch s & KindAll {
	case KindNone:
		return "none"
	case KindAll:
		return "all"
	case KindMagnitude:
		return "magnitude"
	default:
		return "gravity_diff"
	}
}

// ParseKinds parses a comma separated list: "magnitude,gravity_diff", "all" or "none".
func ParseKinds(s string) (Kinds, error) {
	var out Kinds
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "", "none":
		case "all":
			out |= KindAll
		case "magnitude", "mag":
			out |= KindMagnitude
		case "gravity_diff", "gravdiff", "diff":
			out |= KindGravityDiff
		default:
			return 0, fmt.Errorf("unknown signal kind %q", part)
		}
	}
	return out, nil
}

func (s Kinds) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Kinds) UnmarshalText(b []byte) error {
	k, err := ParseKinds(string(b))
	if err != nil {
		return err
	}
	*s = k
	return nil
}
