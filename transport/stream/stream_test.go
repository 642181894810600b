package stream

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitForBytes(t *testing.T, tr *Transport, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for tr.Available() < want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d bytes, have %d", want, tr.Available())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewRequiresReader(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
}

func TestPumpStagesAllBytesUntilEOF(t *testing.T) {
	r, w := io.Pipe()

	tr, err := New(Deps{Name: "pipe-test", Reader: r, ChunkSize: 4})
	require.NoError(t, err)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Close()

	go func() {
		_, _ = w.Write([]byte("alpha\nbeta\n"))
		_ = w.Close()
	}()

	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pump never finished")
	}
	require.True(t, tr.Drained())

	dst := make([]byte, 32)
	n, err := tr.Read(dst)
	require.NoError(t, err)
	require.Equal(t, "alpha\nbeta\n", string(dst[:n]))
}

func TestSubscriberFiresPerChunk(t *testing.T) {
	r, w := io.Pipe()

	tr, err := New(Deps{Reader: r})
	require.NoError(t, err)

	notified := make(chan struct{}, 8)
	tr.Subscribe(func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})

	require.NoError(t, tr.Start(context.Background()))
	defer tr.Close()

	go func() {
		_, _ = w.Write([]byte("chunk\n"))
	}()

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never fired")
	}
	waitForBytes(t, tr, 6)
}

func TestStopUnblocksPendingRead(t *testing.T) {
	r, _ := io.Pipe()

	tr, err := New(Deps{Reader: r})
	require.NoError(t, err)
	require.NoError(t, tr.Start(context.Background()))

	// The pump is blocked in Read; Stop must close the reader to free it.
	require.NoError(t, tr.Stop(2*time.Second))
	require.False(t, tr.Drained())

	// Stop again is a no-op.
	require.NoError(t, tr.Stop(time.Second))
}

func TestStartIsIdempotent(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	tr, err := New(Deps{Reader: r})
	require.NoError(t, err)
	require.NoError(t, tr.Start(context.Background()))
	require.NoError(t, tr.Start(context.Background()))
	require.NoError(t, tr.Close())
}
