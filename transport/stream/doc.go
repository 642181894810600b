// Package stream adapts a blocking io.ReadCloser into a framer transport.
//
// The pump goroutine reads fixed-size chunks from the reader and stages them
// in an in-memory pipe; the framer pulls from the pipe on each data-ready
// notification. This is the path for stdin, serial device files
// (/dev/ttyUSB0 opened by the caller), or an established net.Conn.
//
//	f, err := os.Open("/dev/ttyUSB0")
//	if err != nil {
//		return err
//	}
//	tr, err := stream.New(stream.Deps{Name: "tty", Reader: f})
//	if err != nil {
//		return err
//	}
//	if err := tr.Start(ctx); err != nil {
//		return err
//	}
//	defer tr.Close()
//
// The transport owns the reader once constructed: Stop closes it to unblock
// a pending Read.
package stream
