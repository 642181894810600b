// Package ws implements a WebSocket client transport for the framer.
//
// The transport dials the configured endpoint, reads text and binary
// messages, and stages their payloads in an in-memory pipe for the framer to
// pull. Dropped connections are redialed with exponential backoff per the
// ReconnectConfig; a transport with reconnection disabled stops after the
// first disconnect.
//
// Usage:
//
//	tr, err := ws.New(ws.Deps{
//		Name:   "telemetry-feed",
//		Config: ws.Config{URL: "wss://feed.example.com/raw"},
//		Logger: logger,
//	})
//	if err != nil {
//		return err
//	}
//	if err := tr.Start(ctx); err != nil {
//		return err
//	}
//	defer tr.Close()
package ws
