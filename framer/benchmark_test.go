package framer

import (
	"bytes"
	"testing"
)

// benchSource replays the same batch for every ingest cycle.
type benchSource struct {
	batch []byte
	pos   int
}

func (s *benchSource) rearm() { s.pos = 0 }

func (s *benchSource) Available() int { return len(s.batch) - s.pos }

func (s *benchSource) Read(p []byte) (int, error) {
	n := copy(p, s.batch[s.pos:])
	s.pos += n
	return n, nil
}

type discardHandler struct{}

func (discardHandler) OnRecord([]byte) {}
func (discardHandler) OnOverflow(int) {}

func benchmarkIngest(b *testing.B, batch []byte, capacity int, opts ...Option) {
	src := &benchSource{batch: batch}
	fr, err := New(src, capacity, append([]Option{WithHandler(discardHandler{})}, opts...)...)
	if err != nil {
		b.Fatal(err)
	}

	b.SetBytes(int64(len(batch)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		src.rearm()
		if _, err := fr.Ingest(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkIngestShortLines(b *testing.B) {
	batch := bytes.Repeat([]byte("sensor,12.5,98,ok\n"), 64)
	benchmarkIngest(b, batch, DefaultCapacity)
}

func BenchmarkIngestLongRecords(b *testing.B) {
	record := append(bytes.Repeat([]byte{'x'}, 4096), '\n')
	batch := bytes.Repeat(record, 8)
	benchmarkIngest(b, batch, DefaultCapacity)
}

func BenchmarkIngestMultiByteDelimiter(b *testing.B) {
	batch := bytes.Repeat([]byte("GPGGA,123519,4807.038,N\r\n"), 64)
	benchmarkIngest(b, batch, DefaultCapacity, WithDelimiter([]byte("\r\n")))
}

// BenchmarkIngestWrappedExtraction sizes the ring so records constantly
// straddle the wrap boundary and go through staged copies.
func BenchmarkIngestWrappedExtraction(b *testing.B) {
	batch := bytes.Repeat([]byte("0123456789abcdef0123456789abcde\n"), 4)
	benchmarkIngest(b, batch, 129)
}

func BenchmarkIngestNoDelimiter(b *testing.B) {
	// Worst case for the scanner cache: data never terminates.
	batch := bytes.Repeat([]byte{'z'}, 4096)
	benchmarkIngest(b, batch, DefaultCapacity)
}
