// timetrap service: an NTP responder that serves operator-controlled time

package main

import (
	"bytes"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/beevik/ntp"
	"github.com/pelletier/go-toml/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"example.com/timetrap/base/timemath"

	"example.com/timetrap/benchmark"

	"example.com/timetrap/core/server"
	"example.com/timetrap/core/timebase"
	"example.com/timetrap/core/timesource"

	"example.com/timetrap/driver/clocks"

	ntppkt "example.com/timetrap/net/ntp"
)

const (
	defaultMetricsAddr = "127.0.0.1:8080"
	defaultReferenceID = "LOCL"
	defaultPrecision   = -20
)

type svcConfig struct {
	LocalAddr         string  `toml:"local_address,omitempty"`
	MetricsAddr       string  `toml:"metrics_address,omitempty"`
	TimeMode          string  `toml:"time_mode,omitempty"`
	TimeOffset        string  `toml:"time_offset,omitempty"`
	FrozenTime        string  `toml:"frozen_time,omitempty"`
	CustomTime        string  `toml:"custom_time,omitempty"`
	Stratum           int     `toml:"stratum,omitempty"`
	ReferenceID       string  `toml:"reference_id,omitempty"`
	LeapIndicator     int     `toml:"leap_indicator,omitempty"`
	Precision         *int    `toml:"precision,omitempty"`
	RootDelaySec      float64 `toml:"root_delay_seconds,omitempty"`
	RootDispersionSec float64 `toml:"root_dispersion_seconds,omitempty"`
}

var (
	log *zap.Logger
)

func initLogger(verbose bool) {
	c := zap.NewDevelopmentConfig()
	c.DisableStacktrace = true
	c.EncoderConfig.EncodeCaller = func(
		caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		p := caller.TrimmedPath()
		if len(p) > 30 {
			p = "..." + p[len(p)-27:]
		}
		enc.AppendString(fmt.Sprintf("%30s", p))
	}
	if !verbose {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	var err error
	log, err = c.Build()
	if err != nil {
		panic(err)
	}
}

func runMonitor(log *zap.Logger, metricsAddr string) {
	if metricsAddr == "" {
		metricsAddr = defaultMetricsAddr
	}
	http.Handle("/metrics", promhttp.Handler())
	err := http.ListenAndServe(metricsAddr, nil)
	log.Fatal("failed to serve metrics", zap.Error(err))
}

func loadConfig(configFile string) svcConfig {
	raw, err := os.ReadFile(configFile)
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}
	var cfg svcConfig
	err = toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(&cfg)
	if err != nil {
		log.Fatal("failed to decode configuration", zap.Error(err))
	}
	return cfg
}

func localAddress(cfg svcConfig) *net.UDPAddr {
	if cfg.LocalAddr == "" {
		log.Fatal("local_address not specified in config")
	}
	localAddr, err := net.ResolveUDPAddr("udp", cfg.LocalAddr)
	if err != nil {
		log.Fatal("failed to parse local address", zap.Error(err))
	}
	return localAddr
}

func timeSource(cfg svcConfig, now time.Time) timesource.Source {
	if cfg.CustomTime != "" {
		// The claimed clock starts at the custom instant and advances with
		// real time from there.
		customTime, err := time.Parse(time.RFC3339, cfg.CustomTime)
		if err != nil {
			log.Fatal("failed to parse custom_time", zap.Error(err))
		}
		return timesource.Source{
			Mode:   timesource.ModeOffset,
			Offset: customTime.Sub(now),
		}
	}
	mode, err := timesource.ModeFromString(cfg.TimeMode)
	if err != nil {
		log.Fatal("failed to parse time_mode", zap.Error(err))
	}
	s := timesource.Source{Mode: mode}
	switch mode {
	case timesource.ModeOffset:
		if cfg.TimeOffset == "" {
			log.Fatal("time_offset not specified in config")
		}
		s.Offset, err = time.ParseDuration(cfg.TimeOffset)
		if err != nil {
			log.Fatal("failed to parse time_offset", zap.Error(err))
		}
	case timesource.ModeFrozen:
		if cfg.FrozenTime == "" {
			log.Fatal("frozen_time not specified in config")
		}
		s.Frozen, err = time.Parse(time.RFC3339, cfg.FrozenTime)
		if err != nil {
			log.Fatal("failed to parse frozen_time", zap.Error(err))
		}
	}
	return s
}

func timeSourceConfig(cfg svcConfig, now time.Time) *timesource.Config {
	stratum := cfg.Stratum
	if stratum == 0 {
		stratum = 1
	}
	if stratum < 0 || stratum > 15 {
		log.Fatal("stratum must be in range [0, 15]", zap.Int("stratum", stratum))
	}
	if cfg.LeapIndicator < 0 || cfg.LeapIndicator > 3 {
		log.Fatal("leap_indicator must be in range [0, 3]", zap.Int("leap_indicator", cfg.LeapIndicator))
	}
	referenceID := cfg.ReferenceID
	if referenceID == "" {
		referenceID = defaultReferenceID
	}
	precision := defaultPrecision
	if cfg.Precision != nil {
		precision = *cfg.Precision
	}
	if precision < -128 || precision > 127 {
		log.Fatal("precision must fit a signed byte", zap.Int("precision", precision))
	}
	rootDelay, err := ntppkt.Time32FromDuration(timemath.Duration(cfg.RootDelaySec))
	if err != nil {
		log.Fatal("failed to convert root_delay_seconds", zap.Error(err))
	}
	rootDispersion, err := ntppkt.Time32FromDuration(timemath.Duration(cfg.RootDispersionSec))
	if err != nil {
		log.Fatal("failed to convert root_dispersion_seconds", zap.Error(err))
	}
	return &timesource.Config{
		Source:         timeSource(cfg, now),
		Stratum:        uint8(stratum),
		ReferenceID:    ntppkt.ReferenceIDFromString(referenceID),
		LeapIndicator:  uint8(cfg.LeapIndicator),
		Precision:      int8(precision),
		RootDelay:      rootDelay,
		RootDispersion: rootDispersion,
	}
}

func runServer(configFile string) {
	cfg := loadConfig(configFile)
	localAddr := localAddress(cfg)

	lclk := &clocks.SystemClock{Log: log}
	timebase.RegisterClock(lclk)

	tsCfg := timeSourceConfig(cfg, timebase.Now())
	err := tsCfg.Validate(timebase.Now())
	if err != nil {
		log.Fatal("invalid time source configuration", zap.Error(err))
	}

	server.StartIPServer(log, tsCfg, localAddr)

	runMonitor(log, cfg.MetricsAddr)
}

func runIPTool(remoteAddr string) {
	r, err := ntp.QueryWithOptions(remoteAddr, ntp.QueryOptions{Timeout: 3 * time.Second})
	if err != nil {
		log.Fatal("failed to query NTP server", zap.Error(err))
	}

	now := time.Now()

	log.Info("query results",
		zap.String("host", remoteAddr),
		zap.Time("LocalTime", now),
		zap.Time("XmitTime", r.Time),
		zap.Time("RefTime", r.ReferenceTime),
		zap.Duration("RTT", r.RTT),
		zap.Float64("Offset", timemath.Seconds(r.ClockOffset)),
		zap.Duration("Poll", r.Poll),
		zap.Duration("Precision", r.Precision),
		zap.Uint8("Stratum", r.Stratum),
		zap.String("RefID", fmt.Sprintf("0x%08x", r.ReferenceID)),
		zap.Duration("RootDelay", r.RootDelay),
		zap.Duration("RootDisp", r.RootDispersion),
		zap.Uint8("Leap", uint8(r.Leap)),
	)

	err = r.Validate()
	if err != nil {
		log.Info("response failed client sanity checks", zap.Error(err))
	}
}

func runBenchmark(localAddrStr, remoteAddrStr string, numClients, numRequests int) {
	localAddr, err := net.ResolveUDPAddr("udp", localAddrStr)
	if err != nil {
		log.Fatal("failed to parse local address", zap.Error(err))
	}
	remoteAddr, err := net.ResolveUDPAddr("udp", remoteAddrStr)
	if err != nil {
		log.Fatal("failed to parse remote address", zap.Error(err))
	}

	lclk := &clocks.SystemClock{Log: log}
	timebase.RegisterClock(lclk)

	benchmark.RunIPBenchmark(log, localAddr, remoteAddr, numClients, numRequests)
}

func exitWithUsage() {
	fmt.Println("usage: timetrap server -config <file> [-verbose]")
	fmt.Println("       timetrap tool -remote <host> [-verbose]")
	fmt.Println("       timetrap benchmark -remote <address> [-local <address>] " +
		"[-clients <n>] [-requests <n>] [-verbose]")
	os.Exit(1)
}

func main() {
	var (
		verbose     bool
		configFile  string
		remoteAddr  string
		localAddr   string
		numClients  int
		numRequests int
	)

	serverFlags := flag.NewFlagSet("server", flag.ExitOnError)
	toolFlags := flag.NewFlagSet("tool", flag.ExitOnError)
	benchmarkFlags := flag.NewFlagSet("benchmark", flag.ExitOnError)

	serverFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	serverFlags.StringVar(&configFile, "config", "", "Config file")

	toolFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	toolFlags.StringVar(&remoteAddr, "remote", "", "Remote address")

	benchmarkFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	benchmarkFlags.StringVar(&localAddr, "local", ":0", "Local address")
	benchmarkFlags.StringVar(&remoteAddr, "remote", "", "Remote address")
	benchmarkFlags.IntVar(&numClients, "clients", 1, "Number of client goroutines")
	benchmarkFlags.IntVar(&numRequests, "requests", 10000, "Number of requests per client")

	if len(os.Args) < 2 {
		exitWithUsage()
	}

	switch os.Args[1] {
	case serverFlags.Name():
		err := serverFlags.Parse(os.Args[2:])
		if err != nil || serverFlags.NArg() != 0 {
			exitWithUsage()
		}
		if configFile == "" {
			exitWithUsage()
		}
		initLogger(verbose)
		runServer(configFile)
	case toolFlags.Name():
		err := toolFlags.Parse(os.Args[2:])
		if err != nil || toolFlags.NArg() != 0 {
			exitWithUsage()
		}
		if remoteAddr == "" {
			exitWithUsage()
		}
		initLogger(verbose)
		runIPTool(remoteAddr)
	case benchmarkFlags.Name():
		err := benchmarkFlags.Parse(os.Args[2:])
		if err != nil || benchmarkFlags.NArg() != 0 {
			exitWithUsage()
		}
		if remoteAddr == "" {
			exitWithUsage()
		}
		initLogger(verbose)
		runBenchmark(localAddr, remoteAddr, numClients, numRequests)
	default:
		exitWithUsage()
	}
}
