package timesource

import (
	"go.uber.org/zap/zapcore"
)

func (c *Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("Mode", c.Source.Mode.String())
	if c.Source.Mode == ModeOffset {
		enc.AddDuration("Offset", c.Source.Offset)
	}
	if c.Source.Mode == ModeFrozen {
		enc.AddTime("Frozen", c.Source.Frozen)
	}
	enc.AddUint8("Stratum", c.Stratum)
	enc.AddUint32("ReferenceID", c.ReferenceID)
	enc.AddUint8("LeapIndicator", c.LeapIndicator)
	enc.AddInt8("Precision", c.Precision)
	return nil
}
