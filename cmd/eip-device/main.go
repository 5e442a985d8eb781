// Command eip-device runs the EtherNet/IP adapter application against the
// in-process reference stack.
//
// The device registers its assemblies and connection points, restores
// persisted QoS and TCP/IP attributes, and scans until interrupted. A
// simulated originator, an interactive console, a terminal monitor and an
// HTTP diagnostics API can be enabled to drive and observe it.
//
// Usage:
//
//	eip-device [flags]
//
// Flags:
//
//	-config string      Configuration file path (YAML)
//	-log-level string   Log level: debug, info, warn, error
//	-trace string       Append trace events to this .eiplog file
//	-nv-dir string      Directory for persisted attributes
//	-failsafe string    Output failsafe policy: zero, hold, pattern
//	-simulate           Run a simulated originator
//	-role string        Simulated connection role: eo, io, lo
//	-api string         Serve the diagnostics API on this address
//	-interactive        Start the interactive console
//	-monitor            Start the terminal monitor
//
// Examples:
//
//	# Run with a simulated exclusive owner and a trace file
//	eip-device -simulate -trace device.eiplog
//
//	# Persist attributes and serve the API
//	eip-device -nv-dir /var/lib/eip -api 127.0.0.1:8080
//
//	# Drive the device by hand
//	eip-device -interactive -log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/eipdev/eipdev-go/cmd/eip-device/interactive"
	"github.com/eipdev/eipdev-go/cmd/eip-device/monitor"
	"github.com/eipdev/eipdev-go/pkg/api"
	"github.com/eipdev/eipdev-go/pkg/app"
	"github.com/eipdev/eipdev-go/pkg/config"
	"github.com/eipdev/eipdev-go/pkg/ethlink"
	eiplog "github.com/eipdev/eipdev-go/pkg/log"
	"github.com/eipdev/eipdev-go/pkg/nvdata"
	"github.com/eipdev/eipdev-go/pkg/publish"
	"github.com/eipdev/eipdev-go/pkg/stack"
)

// Flags holds command-line overrides of the configuration file.
type Flags struct {
	ConfigFile  string
	LogLevel    string
	TraceFile   string
	NVDir       string
	Failsafe    string
	Simulate    bool
	Role        string
	APIListen   string
	Interactive bool
	Monitor     bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.TraceFile, "trace", "", "Write CBOR trace events to this file")
	flag.StringVar(&flags.NVDir, "nv-dir", "", "Directory for persisted attributes")
	flag.StringVar(&flags.Failsafe, "failsafe", "", "Output failsafe policy: zero, hold, pattern")
	flag.BoolVar(&flags.Simulate, "simulate", false, "Run a simulated originator")
	flag.StringVar(&flags.Role, "role", "", "Simulated connection role: eo, io, lo")
	flag.StringVar(&flags.APIListen, "api", "", "Serve the diagnostics API on this address")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Start the interactive console")
	flag.BoolVar(&flags.Monitor, "monitor", false, "Start the terminal monitor")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if flags.Interactive && flags.Monitor {
		log.Fatalf("-interactive and -monitor are mutually exclusive")
	}

	var console *interactive.Console
	var logOut io.Writer = os.Stderr
	if flags.Interactive {
		if console, err = interactive.New(); err != nil {
			log.Fatalf("Failed to start console: %v", err)
		}
		logOut = console.Stdout()
		log.SetOutput(logOut)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	traces, closeTraces, err := setupTrace(ctx, cfg, logger, level)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer closeTraces()

	var events *eiplog.MemoryLogger
	if flags.Monitor {
		events = eiplog.NewMemoryLogger(monitor.EventCapacity)
		traces = append(traces, events)
	}
	trace := eiplog.NewMultiLogger(traces...)

	host := stack.NewHost(stack.Config{
		Identity:                 identity(cfg.Identity),
		DefaultRPI:               cfg.Scan.DefaultRPI,
		DefaultTimeoutMultiplier: cfg.Scan.TimeoutMultiplier,
		Logger:                   logger,
		TraceLogger:              trace,
	})

	appConfig, err := deviceConfig(cfg, logger, trace)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	device := app.NewDevice(appConfig)
	if err := device.Initialize(host); err != nil {
		log.Fatalf("Failed to initialize device: %v", err)
	}
	host.Attach(device)

	logger.Info("device initialized",
		"assemblies", len(host.AssemblyIDs()),
		"points", len(host.Points()),
		"failsafe", device.Guard().Policy().String(),
		"nv", cfg.NV.Dir)

	runErr := make(chan error, 1)
	go func() { runErr <- host.Run(ctx, cfg.Scan.Interval) }()

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(host, device, cfg.API, logger)
		if err := apiServer.Start(); err != nil {
			log.Fatalf("Failed to start API: %v", err)
		}
	}

	sim, err := newSimulator(host, cfg.Simulation, logger)
	if err != nil {
		log.Fatalf("Invalid simulation: %v", err)
	}
	if cfg.Simulation.Enabled {
		sim.Start(ctx)
	}

	switch {
	case console != nil:
		console.Attach(host, device, sim)
		go console.Run(ctx, cancel)
	case flags.Monitor:
		mon := monitor.New(host, device, events)
		go func() {
			if err := mon.Run(); err != nil {
				logger.Error("monitor stopped", "error", err)
			}
			cancel()
		}()
		defer mon.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	loopReturned := false
	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	case err := <-runErr:
		loopReturned = true
		if !errors.Is(err, context.Canceled) {
			logger.Error("scan loop stopped", "error", err)
		}
	}

	sim.Stop()
	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Warn("stopping API", "error", err)
		}
	}
	if err := stopScanLoop(cancel, runErr, loopReturned); err != nil {
		logger.Error("scan loop stopped", "error", err)
	}
	logger.Info("shutdown complete", "scans", device.Scans())
}

// stopScanLoop cancels the scan loop and waits for Run to return, unless the
// caller already received its result. The device may only be read from this
// goroutine afterwards.
func stopScanLoop(cancel context.CancelFunc, runErr <-chan error, returned bool) error {
	cancel()
	if returned {
		return nil
	}
	if err := <-runErr; !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if flags.ConfigFile != "" {
		loaded, err := config.Load(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	if flags.TraceFile != "" {
		cfg.Log.TraceFile = flags.TraceFile
	}
	if flags.NVDir != "" {
		cfg.NV.Dir = flags.NVDir
	}
	if flags.Failsafe != "" {
		cfg.Failsafe.Policy = flags.Failsafe
	}
	if flags.Simulate {
		cfg.Simulation.Enabled = true
	}
	if flags.Role != "" {
		cfg.Simulation.Role = flags.Role
	}
	if flags.APIListen != "" {
		cfg.API.Enabled = true
		cfg.API.Listen = flags.APIListen
	}
	return cfg, cfg.Validate()
}

func identity(c config.IdentityConfig) stack.Identity {
	id := stack.DefaultIdentity
	if c.VendorID != 0 {
		id.VendorID = c.VendorID
	}
	if c.ProductCode != 0 {
		id.ProductCode = c.ProductCode
	}
	if c.SerialNumber != 0 {
		id.SerialNumber = c.SerialNumber
	}
	if c.ProductName != "" {
		id.ProductName = c.ProductName
	}
	return id
}

func deviceConfig(cfg *config.Config, logger *slog.Logger, trace eiplog.Logger) (app.Config, error) {
	fs, err := cfg.FailsafeConfig()
	if err != nil {
		return app.Config{}, err
	}
	c := app.Config{
		Failsafe:    fs,
		Logger:      logger,
		TraceLogger: trace,
	}
	if cfg.NV.Dir != "" {
		c.NVStore = nvdata.NewStore(cfg.NV.Dir)
	}
	if cfg.EthernetLink.Counters {
		switch cfg.EthernetLink.Source {
		case "sysfs":
			c.EthernetCounters = ethlink.NewSysfsCounters(cfg.EthernetLink.SysfsRoot, cfg.EthernetLink.Interfaces...)
		default:
			c.EthernetCounters = ethlink.NewStaticCounters(1)
		}
	}
	return c, nil
}

// setupTrace builds the trace sinks: a CBOR file, broker publishers and,
// at debug level, the operational log. The returned func closes them.
func setupTrace(ctx context.Context, cfg *config.Config, logger *slog.Logger, level slog.Level) ([]eiplog.Logger, func(), error) {
	var (
		sinks   []eiplog.Logger
		closers []func() error
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("closing trace sink", "error", err)
			}
		}
	}

	if cfg.Log.TraceFile != "" {
		fl, err := eiplog.NewFileLogger(cfg.Log.TraceFile)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("tracing to file", "path", fl.Path())
		sinks = append(sinks, fl)
		closers = append(closers, func() error {
			logger.Info("trace file closed", "path", fl.Path(), "events", fl.Count(), "lost", fl.Failed())
			return fl.Close()
		})
	}

	var publishers []publish.Publisher
	if cfg.MQTT.Enabled {
		publishers = append(publishers, publish.NewMQTT(cfg.MQTT))
	}
	if cfg.Kafka.Enabled {
		publishers = append(publishers, publish.NewKafka(cfg.Kafka))
	}
	if cfg.Redis.Enabled {
		publishers = append(publishers, publish.NewRedis(cfg.Redis))
	}
	if len(publishers) > 0 {
		fan := publish.NewFanout(publish.FanoutConfig{Logger: logger}, publishers...)
		if err := fan.Start(ctx); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("start publishers: %w", err)
		}
		sinks = append(sinks, fan)
		closers = append(closers, func() error {
			sent, dropped, failed := fan.Stats()
			logger.Info("publishers stopped", "sent", sent, "dropped", dropped, "failed", failed)
			return fan.Close()
		})
	}

	if level <= slog.LevelDebug {
		sinks = append(sinks, eiplog.NewSlogAdapter(logger))
	}
	return sinks, closeAll, nil
}
