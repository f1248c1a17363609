package ntp

import (
	"errors"
	"time"
)

var (
	ErrUnexpectedRequest  = errors.New("unexpected request structure")
	ErrUnexpectedResponse = errors.New("unexpected response structure")
)

// ValidateRequest screens a decoded packet for anything other than a
// well-formed client-mode query. Symmetric, broadcast, and control mode
// packets are rejected; the responder drops them without a reply.
func ValidateRequest(req *Packet, srcPort uint16) error {
	li := req.LeapIndicator()
	if li != LeapIndicatorNoWarning && li != LeapIndicatorUnknown {
		return ErrUnexpectedRequest
	}
	vn := req.Version()
	if vn < VersionMin || VersionMax < vn {
		return ErrUnexpectedRequest
	}
	mode := req.Mode()
	if vn == 1 && mode != ModeReserved0 || vn != 1 && mode != ModeClient {
		return ErrUnexpectedRequest
	}
	if vn == 1 && srcPort == ServerPort {
		return ErrUnexpectedRequest
	}
	return nil
}

func ValidateResponseMetadata(resp *Packet) error {
	// Based on Ntimed by Poul-Henning Kamp, https://github.com/bsdphk/Ntimed

	if resp.LeapIndicator() == LeapIndicatorUnknown {
		return ErrUnexpectedResponse
	}
	if resp.Version() != 3 && resp.Version() != 4 {
		return ErrUnexpectedResponse
	}
	if resp.Mode() != ModeServer {
		return ErrUnexpectedResponse
	}
	if resp.Stratum == 0 || resp.Stratum > 15 {
		return ErrUnexpectedResponse
	}
	return nil
}

func ValidateResponseTimestamps(t0, t1, t2, t3 time.Time) error {
	if t3.Sub(t0) < 0 {
		panic("unexpected local clock behavior")
	}
	if t2.Sub(t1) < 0 {
		return ErrUnexpectedResponse
	}
	return nil
}
