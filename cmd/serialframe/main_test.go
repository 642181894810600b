package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []byte
		wantErr bool
	}{
		{"escaped newline", `\n`, []byte("\n"), false},
		{"escaped crlf", `\r\n`, []byte("\r\n"), false},
		{"literal pipe", "|", []byte("|"), false},
		{"multi-char literal", "END", []byte("END"), false},
		{"null escape", `\x00`, []byte{0}, false},
		{"empty", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDelimiter(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestValidateFlags(t *testing.T) {
	base := func() *CLIConfig {
		return &CLIConfig{
			Transport: "stdin",
			Capacity:  1024,
			Delimiter: `\n`,
			LogLevel:  "info",
			LogFormat: "json",
		}
	}

	t.Run("valid defaults", func(t *testing.T) {
		require.NoError(t, validateFlags(base()))
	})

	t.Run("unknown transport", func(t *testing.T) {
		cfg := base()
		cfg.Transport = "carrier-pigeon"
		require.Error(t, validateFlags(cfg))
	})

	t.Run("ws requires url", func(t *testing.T) {
		cfg := base()
		cfg.Transport = "ws"
		require.Error(t, validateFlags(cfg))

		cfg.WSURL = "ws://localhost:9000/feed"
		require.NoError(t, validateFlags(cfg))
	})

	t.Run("capacity must be positive", func(t *testing.T) {
		cfg := base()
		cfg.Capacity = 0
		require.Error(t, validateFlags(cfg))
	})

	t.Run("version skips validation", func(t *testing.T) {
		cfg := &CLIConfig{ShowVersion: true}
		require.NoError(t, validateFlags(cfg))
	})
}

func TestStdoutHandlerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	h := newStdoutHandler(&buf, slog.Default())

	h.OnRecord([]byte("first"))
	h.OnRecord([]byte("second"))

	require.Equal(t, "first\nsecond\n", buf.String())
}
