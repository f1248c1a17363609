package server

import (
	"time"

	"example.com/timetrap/core/timebase"
	"example.com/timetrap/core/timesource"

	"example.com/timetrap/net/ntp"
)

// HandleRequest builds the response for a validated client-mode request.
// The origin timestamp echoes the request's transmit timestamp bit for bit;
// the receive and transmit timestamps carry whatever time the configured
// source claims. Each request is independent, no state is shared between
// calls. A non-nil error means the response must be dropped; the caller's
// loop continues either way.
func HandleRequest(cfg *timesource.Config, req *ntp.Packet, rxt time.Time, txt *time.Time,
	resp *ntp.Packet) error {
	*txt = timebase.Now()

	rxt64, err := ntp.Time64FromTime(cfg.Source.Apply(rxt))
	if err != nil {
		return err
	}
	txt64, err := ntp.Time64FromTime(cfg.Source.Apply(*txt))
	if err != nil {
		return err
	}

	resp.SetLeapIndicator(cfg.LeapIndicator)
	resp.SetVersion(ntp.VersionMax)
	resp.SetMode(ntp.ModeServer)
	resp.Stratum = cfg.Stratum
	resp.Poll = req.Poll
	resp.Precision = cfg.Precision
	resp.RootDelay = cfg.RootDelay
	resp.RootDispersion = cfg.RootDispersion
	resp.ReferenceID = cfg.ReferenceID

	resp.ReferenceTime = txt64
	resp.OriginTime = req.TransmitTime
	resp.ReceiveTime = rxt64
	resp.TransmitTime = txt64

	return nil
}
