// Package natspub forwards framed records to a NATS subject.
//
// The Sink implements framer.Handler: every extracted record is published
// verbatim to the configured subject, and overflow events optionally go to a
// companion subject as small JSON documents. Because handlers run inside the
// framer's delivery path, publish retries are deliberately short; records
// that still fail are dropped with a warning rather than blocking ingestion
// indefinitely.
//
//	conn, err := natspub.Dial("nats://localhost:4222", "serialframe")
//	if err != nil {
//		return err
//	}
//	sink, err := natspub.New(conn, natspub.Config{
//		Subject:         "telemetry.raw",
//		OverflowSubject: "telemetry.overflow",
//	}, logger)
package natspub
