package server

import (
	"net"
	"strconv"
	"time"

	"github.com/libp2p/go-reuseport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"example.com/timetrap/base/metrics"

	"example.com/timetrap/core/timebase"
	"example.com/timetrap/core/timesource"

	"example.com/timetrap/net/ntp"
	"example.com/timetrap/net/udp"
)

const (
	ipServerNumGoroutine = 8
)

type ipServerMetrics struct {
	pktsReceived prometheus.Counter
	pktsDropped  prometheus.Counter
	reqsAccepted prometheus.Counter
	reqsServed   prometheus.Counter
}

func newIPServerMetrics() *ipServerMetrics {
	return &ipServerMetrics{
		pktsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.IPServerPktsReceivedN,
			Help: metrics.IPServerPktsReceivedH,
		}),
		pktsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.IPServerPktsDroppedN,
			Help: metrics.IPServerPktsDroppedH,
		}),
		reqsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.IPServerReqsAcceptedN,
			Help: metrics.IPServerReqsAcceptedH,
		}),
		reqsServed: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.IPServerReqsServedN,
			Help: metrics.IPServerReqsServedH,
		}),
	}
}

func runIPServer(log *zap.Logger, mtrcs *ipServerMetrics,
	conn *net.UDPConn, cfg *timesource.Config) {
	defer conn.Close()
	err := udp.EnableRxTimestamps(conn)
	if err != nil {
		log.Info("failed to enable RX timestamping", zap.Error(err))
	}

	buf := make([]byte, 2048)
	oob := make([]byte, udp.TimestampLen())
	for {
		buf = buf[:cap(buf)]
		oob = oob[:cap(oob)]
		n, oobn, flags, srcAddr, err := conn.ReadMsgUDPAddrPort(buf, oob)
		if err != nil {
			log.Error("failed to read packet", zap.Error(err))
			continue
		}
		if flags != 0 {
			log.Error("failed to read packet", zap.Int("flags", flags))
			continue
		}
		oob = oob[:oobn]
		rxt, err := udp.TimestampFromOOBData(oob)
		if err != nil {
			rxt = timebase.Now()
			log.Debug("failed to read packet rx timestamp", zap.Error(err))
		}
		buf = buf[:n]
		mtrcs.pktsReceived.Inc()

		var ntpreq ntp.Packet
		err = ntp.DecodePacket(&ntpreq, buf)
		if err != nil {
			mtrcs.pktsDropped.Inc()
			log.Info("failed to decode packet payload, dropping packet",
				zap.Stringer("from", srcAddr), zap.Error(err))
			continue
		}

		err = ntp.ValidateRequest(&ntpreq, srcAddr.Port())
		if err != nil {
			mtrcs.pktsDropped.Inc()
			log.Info("unexpected request packet, dropping packet",
				zap.Stringer("from", srcAddr), zap.Error(err))
			continue
		}

		mtrcs.reqsAccepted.Inc()
		log.Debug("received request",
			zap.Time("at", rxt),
			zap.Stringer("from", srcAddr),
			zap.Object("data", ntp.PacketMarshaler{Pkt: &ntpreq}),
		)

		var txt time.Time
		var ntpresp ntp.Packet
		err = HandleRequest(cfg, &ntpreq, rxt, &txt, &ntpresp)
		if err != nil {
			mtrcs.pktsDropped.Inc()
			log.Error("failed to build response, dropping packet",
				zap.Stringer("from", srcAddr), zap.Error(err))
			continue
		}

		ntp.EncodePacket(&buf, &ntpresp)

		n, err = conn.WriteToUDPAddrPort(buf, srcAddr)
		if err != nil || n != len(buf) {
			log.Error("failed to write packet", zap.Error(err))
			continue
		}
		mtrcs.reqsServed.Inc()
	}
}

func StartIPServer(log *zap.Logger, cfg *timesource.Config, localHost *net.UDPAddr) {
	log.Info("server listening via IP",
		zap.Stringer("local host", localHost),
		zap.Object("time source", cfg),
	)

	mtrcs := newIPServerMetrics()

	if ipServerNumGoroutine == 1 {
		conn, err := net.ListenUDP("udp", localHost)
		if err != nil {
			log.Fatal("failed to listen for packets", zap.Error(err))
		}
		go runIPServer(log, mtrcs, conn, cfg)
	} else {
		for i := 0; i < ipServerNumGoroutine; i++ {
			conn, err := reuseport.ListenPacket("udp",
				net.JoinHostPort(localHost.IP.String(), strconv.Itoa(localHost.Port)))
			if err != nil {
				log.Fatal("failed to listen for packets", zap.Error(err))
			}
			go runIPServer(log, mtrcs, conn.(*net.UDPConn), cfg)
		}
	}
}
