// Package transport defines the external collaborator contract the framer
// consumes, plus an in-memory staging pipe shared by the concrete transports.
package transport

import (
	"io"
)

// Source is the pull side of a transport: a non-blocking query for currently
// available bytes and a read that copies up to len(p) of them into p,
// returning the actual count. Returning fewer bytes than requested, or zero,
// is not an error. Implementations make no promise about chunk granularity;
// consumers must not assume bytes arrive framed.
type Source interface {
	Available() int
	Read(p []byte) (n int, err error)
}

// Transport is a Source with a data-ready notification and a lifecycle. A
// single subscriber is supported; Subscribe replaces any previous callback
// and Subscribe(nil) unregisters it. The callback fires after new bytes
// become readable and must not be assumed to run on any particular
// goroutine.
type Transport interface {
	Source
	Subscribe(fn func())
	io.Closer
}
