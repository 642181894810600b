package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	Transport string

	UDPBind string
	UDPPort int
	WSURL   string

	Capacity  int
	Delimiter string

	NATSURL             string
	NATSSubject         string
	NATSOverflowSubject string

	MetricsPort     int
	StatsInterval   time.Duration
	ShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string

	ShowVersion bool
	ShowHelp    bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.Transport, "transport",
		getEnv("SERIALFRAME_TRANSPORT", "stdin"),
		"Byte source: udp, ws, stdin (env: SERIALFRAME_TRANSPORT)")

	flag.StringVar(&cfg.UDPBind, "udp-bind",
		getEnv("SERIALFRAME_UDP_BIND", "0.0.0.0"),
		"UDP bind address (env: SERIALFRAME_UDP_BIND)")

	flag.IntVar(&cfg.UDPPort, "udp-port",
		getEnvInt("SERIALFRAME_UDP_PORT", 14550),
		"UDP listen port (env: SERIALFRAME_UDP_PORT)")

	flag.StringVar(&cfg.WSURL, "ws-url",
		getEnv("SERIALFRAME_WS_URL", ""),
		"WebSocket endpoint, e.g. ws://host:port/feed (env: SERIALFRAME_WS_URL)")

	flag.IntVar(&cfg.Capacity, "capacity",
		getEnvInt("SERIALFRAME_CAPACITY", 65536),
		"Ring buffer capacity in bytes (env: SERIALFRAME_CAPACITY)")

	flag.StringVar(&cfg.Delimiter, "delimiter",
		getEnv("SERIALFRAME_DELIMITER", `\n`),
		`Record delimiter, escapes allowed, e.g. \n or \r\n (env: SERIALFRAME_DELIMITER)`)

	flag.StringVar(&cfg.NATSURL, "nats-url",
		getEnv("SERIALFRAME_NATS_URL", ""),
		"NATS server URL; empty writes records to stdout (env: SERIALFRAME_NATS_URL)")

	flag.StringVar(&cfg.NATSSubject, "nats-subject",
		getEnv("SERIALFRAME_NATS_SUBJECT", "serialframe.records"),
		"NATS subject for records (env: SERIALFRAME_NATS_SUBJECT)")

	flag.StringVar(&cfg.NATSOverflowSubject, "nats-overflow-subject",
		getEnv("SERIALFRAME_NATS_OVERFLOW_SUBJECT", ""),
		"NATS subject for overflow events, empty to disable (env: SERIALFRAME_NATS_OVERFLOW_SUBJECT)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("SERIALFRAME_METRICS_PORT", 0),
		"Prometheus metrics port, 0 to disable (env: SERIALFRAME_METRICS_PORT)")

	flag.DurationVar(&cfg.StatsInterval, "stats-interval",
		getEnvDuration("SERIALFRAME_STATS_INTERVAL", 0),
		"Periodic statistics log interval, 0 to disable (env: SERIALFRAME_STATS_INTERVAL)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("SERIALFRAME_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: SERIALFRAME_SHUTDOWN_TIMEOUT)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("SERIALFRAME_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: SERIALFRAME_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("SERIALFRAME_LOG_FORMAT", "json"),
		"Log format: json, text (env: SERIALFRAME_LOG_FORMAT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")

	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	validTransports := []string{"udp", "ws", "stdin"}
	if !contains(validTransports, cfg.Transport) {
		return fmt.Errorf("invalid transport: %s", cfg.Transport)
	}

	if cfg.Transport == "ws" && cfg.WSURL == "" {
		return fmt.Errorf("ws transport requires --ws-url")
	}

	if cfg.Capacity <= 0 {
		return fmt.Errorf("invalid capacity: %d", cfg.Capacity)
	}

	if _, err := parseDelimiter(cfg.Delimiter); err != nil {
		return fmt.Errorf("invalid delimiter: %w", err)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	return nil
}

// parseDelimiter interprets escape sequences so shells can pass \r\n
// literally.
func parseDelimiter(raw string) ([]byte, error) {
	if raw == "" {
		return nil, fmt.Errorf("delimiter must not be empty")
	}
	unquoted, err := strconv.Unquote(`"` + raw + `"`)
	if err != nil {
		// No escapes to expand; use the raw bytes.
		return []byte(raw), nil
	}
	if unquoted == "" {
		return nil, fmt.Errorf("delimiter must not be empty")
	}
	return []byte(unquoted), nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Bounded-memory byte-stream framing

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Frame newline-delimited records from stdin
  cat telemetry.log | %s

  # Listen for NMEA sentences over UDP, publish to NATS
  %s --transport=udp --udp-port=10110 --delimiter='\r\n' \
      --nats-url=nats://localhost:4222 --nats-subject=nmea.sentences

  # Pull from a WebSocket feed with Prometheus metrics
  %s --transport=ws --ws-url=wss://feed.example.com/raw --metrics-port=9090

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
