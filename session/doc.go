// Package session binds a transport to a framer under one lifecycle.
//
// A Session subscribes to the transport's data-ready notification and runs
// one framer ingest cycle per notification, so records reach the handler as
// soon as their delimiter arrives. Statistics, discard, and health queries
// pass through to the framer and stay safe to call from any goroutine.
//
//	sess, err := session.New(session.Config{
//		Name:         "gps",
//		Capacity:     32 * 1024,
//		Delimiter:    []byte("\r\n"),
//		OwnTransport: true,
//	}, session.Deps{
//		Transport: tr,
//		Handler:   handler,
//		Logger:    logger,
//	})
//	if err != nil {
//		return err
//	}
//	if err := sess.Start(ctx); err != nil {
//		return err
//	}
//	defer sess.Stop()
//
// Sessions are single-use: Stop is final and a stopped session rejects
// Start.
package session
