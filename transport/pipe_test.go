package transport

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/c360/serialframe/errors"
)

func TestPipeWriteReadRoundTrip(t *testing.T) {
	p := NewPipe()

	n, err := p.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, 5, p.Available())

	dst := make([]byte, 3)
	n, err = p.Read(dst)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "hel", string(dst))
	require.Equal(t, 2, p.Available())

	dst = make([]byte, 8)
	n, err = p.Read(dst)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "lo", string(dst[:n]))
	require.Equal(t, 0, p.Available())
}

func TestPipeReadOnEmptyReturnsZero(t *testing.T) {
	p := NewPipe()

	dst := make([]byte, 4)
	n, err := p.Read(dst)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestPipeNotifiesSubscriberPerWrite(t *testing.T) {
	p := NewPipe()

	var fired int
	p.Subscribe(func() { fired++ })

	_, err := p.Write([]byte("a"))
	require.NoError(t, err)
	_, err = p.Write([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, 2, fired)

	// Replacing the subscriber drops the old one.
	var replacement int
	p.Subscribe(func() { replacement++ })
	_, err = p.Write([]byte("c"))
	require.NoError(t, err)
	require.Equal(t, 2, fired)
	require.Equal(t, 1, replacement)
}

func TestPipeSubscriberMayReenter(t *testing.T) {
	p := NewPipe()

	var drained []byte
	p.Subscribe(func() {
		dst := make([]byte, p.Available())
		n, err := p.Read(dst)
		require.NoError(t, err)
		drained = append(drained, dst[:n]...)
	})

	_, err := p.Write([]byte("line one\n"))
	require.NoError(t, err)
	_, err = p.Write([]byte("line two\n"))
	require.NoError(t, err)

	require.Equal(t, "line one\nline two\n", string(drained))
	require.Equal(t, 0, p.Available())
}

func TestPipeCloseRejectsWritesKeepsReads(t *testing.T) {
	p := NewPipe()
	_, err := p.Write([]byte("tail"))
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = p.Write([]byte("late"))
	require.Error(t, err)
	require.ErrorIs(t, err, errors.ErrClosed)

	dst := make([]byte, 4)
	n, err := p.Read(dst)
	require.NoError(t, err)
	require.Equal(t, "tail", string(dst[:n]))
}

func TestPipeConcurrentWriters(t *testing.T) {
	p := NewPipe()

	const writers = 8
	const perWriter = 100

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				_, err := p.Write([]byte{'x'})
				require.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, writers*perWriter, p.Available())
}
