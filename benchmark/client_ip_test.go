package benchmark_test

import (
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"example.com/timetrap/benchmark"
	"example.com/timetrap/core/timebase"
	"example.com/timetrap/driver/clocks"
)

func init() {
	lclk := &clocks.SystemClock{Log: zap.NewNop()}
	timebase.RegisterClock(lclk)
}

func TestRunIPBenchmarkReturnsOnDialFailure(t *testing.T) {
	// 192.0.2.0/24 is reserved for documentation, so binding to it fails
	// and every client goroutine exits before sending a request.
	localAddr := &net.UDPAddr{IP: net.IPv4(192, 0, 2, 1)}
	remoteAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 123}

	done := make(chan struct{})
	go func() {
		benchmark.RunIPBenchmark(zap.NewNop(), localAddr, remoteAddr, 2, 1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("the benchmark must return when clients fail to dial")
	}
}
