// Package timesource models the operator-controlled time a responder claims
// to have. The source is constructed once at startup, validated, and then
// read by every request without locking.
package timesource

import (
	"errors"
	"fmt"
	"time"

	"example.com/timetrap/net/ntp"
)

type Mode int

const (
	// ModeSystem passes the system time through unmodified.
	ModeSystem Mode = iota
	// ModeOffset adds a fixed delta to the system time.
	ModeOffset
	// ModeFrozen always claims one fixed instant.
	ModeFrozen
)

var (
	errUnknownMode    = errors.New("unknown time source mode")
	errInvalidStratum = errors.New("stratum must be in range [0, 15]")
	errInvalidLeap    = errors.New("leap indicator must be in range [0, 3]")
)

func ModeFromString(s string) (Mode, error) {
	switch s {
	case "", "system":
		return ModeSystem, nil
	case "offset":
		return ModeOffset, nil
	case "frozen":
		return ModeFrozen, nil
	}
	return 0, fmt.Errorf("%w: %q", errUnknownMode, s)
}

func (m Mode) String() string {
	switch m {
	case ModeSystem:
		return "system"
	case ModeOffset:
		return "offset"
	case ModeFrozen:
		return "frozen"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

type Source struct {
	Mode   Mode
	Offset time.Duration
	Frozen time.Time
}

// Apply maps a real instant to the instant the responder claims it is.
func (s Source) Apply(t time.Time) time.Time {
	switch s.Mode {
	case ModeOffset:
		return t.Add(s.Offset)
	case ModeFrozen:
		return s.Frozen
	default:
		return t
	}
}

// Config carries the source together with the trust metadata placed in every
// response. Immutable after startup.
type Config struct {
	Source         Source
	Stratum        uint8
	ReferenceID    uint32
	LeapIndicator  uint8
	Precision      int8
	RootDelay      ntp.Time32
	RootDispersion ntp.Time32
}

// Validate reports an absurd configuration as a startup error so that time
// range violations never surface per request. now is the current reading of
// the local clock.
func (c *Config) Validate(now time.Time) error {
	if c.Stratum > 15 {
		return errInvalidStratum
	}
	if c.LeapIndicator > ntp.LeapIndicatorUnknown {
		return errInvalidLeap
	}
	_, err := ntp.Time64FromTime(c.Source.Apply(now))
	if err != nil {
		return fmt.Errorf("time source %s produces unrepresentable timestamps: %w",
			c.Source.Mode, err)
	}
	return nil
}
