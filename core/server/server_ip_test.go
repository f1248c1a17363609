package server

import (
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"example.com/timetrap/core/timesource"

	"example.com/timetrap/net/ntp"
)

func TestIPServerDropIsolation(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to listen for packets: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	cfg := &timesource.Config{
		Stratum:     1,
		ReferenceID: ntp.ReferenceIDFromString("LOCL"),
		Precision:   -20,
	}
	go runIPServer(zap.NewNop(), newIPServerMetrics(), conn, cfg)

	cl, err := net.DialUDP("udp", nil, conn.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("failed to dial UDP connection: %v", err)
	}
	t.Cleanup(func() { cl.Close() })

	// A short datagram and a non-client-mode packet must both be dropped
	// without a reply.
	_, err = cl.Write(make([]byte, 20))
	if err != nil {
		t.Fatalf("failed to write packet: %v", err)
	}

	badreq := ntp.Packet{}
	badreq.SetVersion(ntp.VersionMax)
	badreq.SetMode(ntp.ModeServer)
	buf := make([]byte, ntp.PacketLen)
	ntp.EncodePacket(&buf, &badreq)
	_, err = cl.Write(buf)
	if err != nil {
		t.Fatalf("failed to write packet: %v", err)
	}

	err = cl.SetReadDeadline(time.Now().Add(250 * time.Millisecond))
	if err != nil {
		t.Fatalf("failed to set read deadline: %v", err)
	}
	n, err := cl.Read(buf)
	if err == nil {
		t.Fatalf("a dropped packet must not produce a reply, got %d bytes", n)
	}
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("failed to read packet: %v", err)
	}

	// A valid request following the dropped packets must still be served.
	ntpreq := ntp.Packet{}
	ntpreq.SetVersion(ntp.VersionMax)
	ntpreq.SetMode(ntp.ModeClient)
	ntpreq.TransmitTime = ntp.Time64{Seconds: 3_930_000_000, Fraction: 7}
	ntp.EncodePacket(&buf, &ntpreq)
	_, err = cl.Write(buf)
	if err != nil {
		t.Fatalf("failed to write packet: %v", err)
	}

	err = cl.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err != nil {
		t.Fatalf("failed to set read deadline: %v", err)
	}
	n, err = cl.Read(buf)
	if err != nil {
		t.Fatalf("failed to read packet: %v", err)
	}

	var ntpresp ntp.Packet
	err = ntp.DecodePacket(&ntpresp, buf[:n])
	if err != nil {
		t.Fatalf("failed to decode packet payload: %v", err)
	}
	if ntpresp.Mode() != ntp.ModeServer {
		t.Errorf("response mode must be server, got %d", ntpresp.Mode())
	}
	if ntpresp.OriginTime != ntpreq.TransmitTime {
		t.Errorf("origin timestamp must echo the request transmit timestamp, got %v",
			ntpresp.OriginTime)
	}
}
