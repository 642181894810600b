// Package serialframe provides bounded-memory framing for continuous byte
// streams arriving from serial lines, sockets, and similar transports.
//
// # Architecture
//
// The module is organized around one core and a set of collaborators:
//
//	┌─────────────────────────────────────┐
//	│           Session                   │  Lifecycle, wiring,
//	│  (start, stop, stats, discard)      │  health
//	└─────────────────────────────────────┘
//	           ↓ owns
//	┌─────────────────────────────────────┐
//	│           Framer                    │  Ring buffer, overflow
//	│  (ingest, scan, extract, emit)      │  policy, delimiter scan
//	└─────────────────────────────────────┘
//	      ↑ bytes               ↓ records
//	┌──────────────┐     ┌──────────────┐
//	│  Transport   │     │   Handler    │
//	│ udp/ws/stream│     │ log/NATS/... │
//	└──────────────┘     └──────────────┘
//
// The framer never reads on its own schedule: a transport signals "data
// ready", the framer pulls whatever is available into a fixed-capacity ring
// buffer (evicting the oldest bytes when the batch would not fit), scans
// incrementally for the configured delimiter, and delivers each completed
// record synchronously to the handler.
//
// Layering rules:
//   - framer knows nothing about concrete transports; it consumes a Source.
//   - transports know nothing about delimiters or records; they move bytes.
//   - sinks are plain handlers; the framer does not know where records go.
//
// See the framer package for the buffering and framing contract, transport
// for the collaborator interfaces, and session for turnkey wiring.
package serialframe
