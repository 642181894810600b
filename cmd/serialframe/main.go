// Package main implements the serialframe command, a bounded-memory framer
// for delimiter-terminated byte streams. It reads from UDP, a WebSocket
// endpoint, or stdin, extracts records, and writes them to stdout or
// publishes them to NATS.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/c360/serialframe/framer"
	"github.com/c360/serialframe/metric"
	"github.com/c360/serialframe/session"
	"github.com/c360/serialframe/sink/natspub"
	"github.com/c360/serialframe/transport"
	"github.com/c360/serialframe/transport/stream"
	"github.com/c360/serialframe/transport/udp"
	"github.com/c360/serialframe/transport/ws"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "serialframe"
)

// lifecycleTransport is the Start/Stop surface shared by the concrete
// transports, on top of the byte-level transport.Transport contract.
type lifecycleTransport interface {
	transport.Transport
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Metrics registry is always created; the HTTP server only runs when a
	// port is configured.
	registry := metric.NewMetricsRegistry()
	stopMetrics, err := startMetricsServer(cliCfg, registry)
	if err != nil {
		return err
	}
	defer stopMetrics()

	tr, err := buildTransport(cliCfg, registry, logger)
	if err != nil {
		return fmt.Errorf("build transport: %w", err)
	}

	handler, closeHandler, err := buildHandler(cliCfg, logger)
	if err != nil {
		return fmt.Errorf("build handler: %w", err)
	}
	defer closeHandler()

	delimiter, err := parseDelimiter(cliCfg.Delimiter)
	if err != nil {
		return err
	}

	sess, err := session.New(session.Config{
		Name:         cliCfg.Transport,
		Capacity:     cliCfg.Capacity,
		Delimiter:    delimiter,
		OwnTransport: true,
	}, session.Deps{
		Transport:       tr,
		Handler:         handler,
		MetricsRegistry: registry,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	return runWithSignalHandling(cliCfg, tr, sess)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting serialframe",
		"version", Version,
		"build_time", BuildTime,
		"transport", cliCfg.Transport,
		"capacity", cliCfg.Capacity)

	return cliCfg, logger, false, nil
}

// startMetricsServer launches the Prometheus endpoint when configured. The
// returned func stops it.
func startMetricsServer(cfg *CLIConfig, registry *metric.MetricsRegistry) (func(), error) {
	if cfg.MetricsPort == 0 {
		return func() {}, nil
	}

	server := metric.NewServer(cfg.MetricsPort, "/metrics", registry)
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	slog.Info("Metrics server listening", "address", server.Address())

	return func() { _ = server.Stop() }, nil
}

// buildTransport constructs the configured byte source.
func buildTransport(
	cfg *CLIConfig,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) (lifecycleTransport, error) {
	switch cfg.Transport {
	case "udp":
		return udp.New(udp.Deps{
			Name:            "udp",
			Config:          udp.Config{Bind: cfg.UDPBind, Port: cfg.UDPPort},
			MetricsRegistry: registry,
			Logger:          logger,
		})
	case "ws":
		wsCfg := ws.DefaultConfig()
		wsCfg.URL = cfg.WSURL
		return ws.New(ws.Deps{
			Name:            "ws",
			Config:          wsCfg,
			MetricsRegistry: registry,
			Logger:          logger,
		})
	case "stdin":
		return stream.New(stream.Deps{
			Name:   "stdin",
			Reader: os.Stdin,
			Logger: logger,
		})
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// buildHandler selects the record destination: NATS when configured,
// otherwise stdout.
func buildHandler(cfg *CLIConfig, logger *slog.Logger) (framer.Handler, func(), error) {
	if cfg.NATSURL == "" {
		return newStdoutHandler(os.Stdout, logger), func() {}, nil
	}

	conn, err := natspub.Dial(cfg.NATSURL, appName)
	if err != nil {
		return nil, nil, err
	}

	sink, err := natspub.New(conn, natspub.Config{
		Subject:         cfg.NATSSubject,
		OverflowSubject: cfg.NATSOverflowSubject,
	}, logger)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	slog.Info("Publishing records to NATS",
		"url", cfg.NATSURL,
		"subject", cfg.NATSSubject)
	return sink, func() { conn.Close() }, nil
}

// stdoutHandler writes each record as one newline-terminated line.
type stdoutHandler struct {
	mu     sync.Mutex
	out    io.Writer
	logger *slog.Logger
}

func newStdoutHandler(out io.Writer, logger *slog.Logger) *stdoutHandler {
	return &stdoutHandler{out: out, logger: logger}
}

func (h *stdoutHandler) OnRecord(record []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, _ = h.out.Write(record)
	_, _ = h.out.Write([]byte{'\n'})
}

func (h *stdoutHandler) OnOverflow(dropped int) {
	h.logger.Warn("buffer overflow dropped data", "bytes", dropped)
}

// runWithSignalHandling starts the pipeline and blocks until a signal or,
// for stdin, end of input.
func runWithSignalHandling(cfg *CLIConfig, tr lifecycleTransport, sess *session.Session) error {
	signalCtx, signalCancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := sess.Start(signalCtx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	if err := tr.Start(signalCtx); err != nil {
		_ = sess.Stop()
		return fmt.Errorf("start transport: %w", err)
	}
	slog.Info("serialframe started", "session_id", sess.ID())

	stopStats := startStatsLogger(cfg.StatsInterval, sess)
	defer stopStats()

	// A drained stdin stream ends the run without a signal.
	var streamDone <-chan struct{}
	if st, ok := tr.(*stream.Transport); ok {
		streamDone = st.Done()
	}

	select {
	case <-signalCtx.Done():
		slog.Info("Received shutdown signal")
	case <-streamDone:
		slog.Info("Input stream ended")
	}

	if err := tr.Stop(cfg.ShutdownTimeout); err != nil {
		slog.Warn("Transport stop incomplete", "error", err)
	}
	if err := sess.Stop(); err != nil {
		return fmt.Errorf("stop session: %w", err)
	}

	logFinalStats(sess)
	return nil
}

// startStatsLogger periodically logs the statistics snapshot. The returned
// func stops it.
func startStatsLogger(interval time.Duration, sess *session.Session) func() {
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				stats := sess.Stats()
				slog.Info("statistics",
					"records", stats.Records,
					"bytes_received", stats.BytesReceived,
					"overflow_events", stats.OverflowEvents,
					"bytes_discarded", stats.BytesDiscarded,
					"usage", stats.Usage,
					"peak_usage", stats.PeakUsage)
			}
		}
	}()
	return func() { close(done) }
}

func logFinalStats(sess *session.Session) {
	stats := sess.Stats()
	slog.Info("final statistics",
		"records", stats.Records,
		"bytes_received", stats.BytesReceived,
		"overflow_events", stats.OverflowEvents,
		"bytes_discarded", stats.BytesDiscarded,
		"empty_records", stats.EmptyRecords,
		"callback_faults", stats.CallbackFaults,
		"peak_usage", stats.PeakUsage)
}
