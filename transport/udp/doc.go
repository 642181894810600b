// Package udp implements a datagram transport for the framer.
//
// The transport binds a UDP socket, reads datagrams on a deadline-polled
// loop, and stages each payload in an in-memory pipe. The framer pulls the
// staged bytes through the transport's Source side; datagram boundaries are
// not preserved, so records must be delimiter-terminated by the sender.
//
// Usage:
//
//	tr, err := udp.New(udp.Deps{
//		Config: udp.Config{Bind: "0.0.0.0", Port: 14550},
//		Logger: logger,
//	})
//	if err != nil {
//		return err
//	}
//	if err := tr.Start(ctx); err != nil {
//		return err
//	}
//	defer tr.Close()
//
// Lifecycle follows the Start/Stop pattern: Start binds the socket with
// retry and launches the read loop; Stop signals shutdown, closes the
// socket to unblock the loop, and waits up to the given timeout.
package udp
