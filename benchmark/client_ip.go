package benchmark

import (
	"net"
	"os"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"go.uber.org/zap"

	"example.com/timetrap/core/timebase"

	"example.com/timetrap/net/ntp"
	"example.com/timetrap/net/udp"
)

// RunIPBenchmark floods a responder with client-mode requests and prints a
// round-trip delay histogram per client goroutine. Intended for verifying
// that the responder keeps serving under load, not for precise offset
// measurements.
func RunIPBenchmark(log *zap.Logger, localAddr, remoteAddr *net.UDPAddr,
	numClientGoroutine, numRequestPerClient int) {
	var mu sync.Mutex
	sg := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(numClientGoroutine)
	for i := numClientGoroutine; i > 0; i-- {
		go func() {
			defer wg.Done()
			hg := hdrhistogram.New(1, 50000, 5)
			var clockOffset time.Duration

			conn, err := net.DialUDP("udp", localAddr, remoteAddr)
			if err != nil {
				log.Error("failed to dial UDP connection", zap.Error(err))
				return
			}
			defer conn.Close()
			_ = udp.EnableRxTimestamps(conn)

			<-sg
			for j := numRequestPerClient; j > 0; j-- {
				ntpreq := ntp.Packet{}
				buf := make([]byte, ntp.PacketLen)

				cTxTime := timebase.Now()
				cTxTime64, err := ntp.Time64FromTime(cTxTime)
				if err != nil {
					log.Error("failed to convert timestamp", zap.Error(err))
					return
				}

				ntpreq.SetVersion(ntp.VersionMax)
				ntpreq.SetMode(ntp.ModeClient)
				ntpreq.TransmitTime = cTxTime64
				ntp.EncodePacket(&buf, &ntpreq)

				_, err = conn.Write(buf)
				if err != nil {
					log.Error("failed to write packet", zap.Error(err))
					return
				}

				oob := make([]byte, udp.TimestampLen())

				n, oobn, flags, _, err := conn.ReadMsgUDPAddrPort(buf, oob)
				if err != nil {
					log.Error("failed to read packet", zap.Error(err))
					return
				}
				if flags != 0 {
					log.Error("failed to read packet", zap.Int("flags", flags))
					return
				}

				oob = oob[:oobn]
				cRxTime, err := udp.TimestampFromOOBData(oob)
				if err != nil {
					cRxTime = timebase.Now()
				}
				buf = buf[:n]

				var ntpresp ntp.Packet
				err = ntp.DecodePacket(&ntpresp, buf)
				if err != nil {
					log.Error("failed to decode packet payload", zap.Error(err))
					return
				}

				if ntpresp.OriginTime != cTxTime64 {
					log.Error("unrelated packet received")
					return
				}

				err = ntp.ValidateResponseMetadata(&ntpresp)
				if err != nil {
					log.Error("unexpected packet received", zap.Error(err))
					return
				}

				sRxTime := ntp.TimeFromTime64(ntpresp.ReceiveTime, cTxTime)
				sTxTime := ntp.TimeFromTime64(ntpresp.TransmitTime, cTxTime)

				err = ntp.ValidateResponseTimestamps(cTxTime, sRxTime, sTxTime, cRxTime)
				if err != nil {
					log.Error("unexpected packet received", zap.Error(err))
					return
				}

				clockOffset = ntp.ClockOffset(cTxTime, sRxTime, sTxTime, cRxTime)
				roundTripDelay := ntp.RoundTripDelay(cTxTime, sRxTime, sTxTime, cRxTime)

				err = hg.RecordValue(roundTripDelay.Microseconds())
				if err != nil {
					log.Error("failed to record histogram value", zap.Error(err))
					return
				}
			}
			mu.Lock()
			defer mu.Unlock()
			hg.PercentilesPrint(os.Stdout, 1, 1.0)
			log.Info("observed clock offset", zap.Duration("offset", clockOffset))
		}()
	}
	t0 := time.Now()
	close(sg)
	wg.Wait()
	log.Info("benchmark done", zap.Duration("elapsed", time.Since(t0)))
}
