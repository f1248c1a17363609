package clocks

import (
	"time"

	"go.uber.org/zap"

	"example.com/timetrap/base/timebase"
)

type SystemClock struct {
	Log *zap.Logger
}

var _ timebase.LocalClock = (*SystemClock)(nil)

func (c *SystemClock) Epoch() uint64 {
	return 0
}

func (c *SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func (c *SystemClock) Sleep(duration time.Duration) {
	c.Log.Debug("SystemClock.Sleep",
		zap.Duration("duration", duration),
	)
	time.Sleep(duration)
}
