package bridge

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	buf         bytes.Buffer
	writeErr    error
	finalizeErr error
	finalized   bool
}

func (s *fakeSink) Write(chunk []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.buf.Write(chunk)
}

func (s *fakeSink) Finalize() (int, error) {
	s.finalized = true
	if s.finalizeErr != nil {
		return 0, s.finalizeErr
	}
	return s.buf.Len(), nil
}

func sendAll(chunks chan<- []byte, errc chan<- error, payloads [][]byte) {
	for _, p := range payloads {
		chunks <- p
	}
	close(chunks)
	errc <- nil
	close(errc)
}

func TestBridgePumpFlushesBelowCapacity(t *testing.T) {
	sink := &fakeSink{}
	b := New(sink, &Config{BufferSize: 1024})

	chunks := make(chan []byte)
	errc := make(chan error, 1)
	go sendAll(chunks, errc, [][]byte{[]byte("hello "), []byte("world")})

	n, err := b.Pump(context.Background(), chunks, errc)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	assert.Equal(t, "hello world", sink.buf.String())
	assert.True(t, sink.finalized)
}

func TestBridgePumpFlushesAtCapacity(t *testing.T) {
	sink := &fakeSink{}
	b := New(sink, &Config{BufferSize: 4})

	chunks := make(chan []byte)
	errc := make(chan error, 1)
	go sendAll(chunks, errc, [][]byte{[]byte("ab"), []byte("cd"), []byte("ef")})

	n, err := b.Pump(context.Background(), chunks, errc)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, "abcdef", sink.buf.String())
}

func TestBridgePumpPropagatesProducerError(t *testing.T) {
	sink := &fakeSink{}
	b := New(sink, DefaultConfig())

	wantErr := errors.New("download failed")
	chunks := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		chunks <- []byte("partial")
		close(chunks)
		errc <- wantErr
		close(errc)
	}()

	_, err := b.Pump(context.Background(), chunks, errc)
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, sink.finalized)
}

func TestBridgePumpPropagatesSinkWriteError(t *testing.T) {
	wantErr := errors.New("disk full")
	sink := &fakeSink{writeErr: wantErr}
	b := New(sink, &Config{BufferSize: 2})

	chunks := make(chan []byte)
	errc := make(chan error, 1)
	go sendAll(chunks, errc, [][]byte{[]byte("ab"), []byte("cd")})

	_, err := b.Pump(context.Background(), chunks, errc)
	assert.ErrorIs(t, err, wantErr)
}

func TestBridgePumpCancellation(t *testing.T) {
	sink := &fakeSink{}
	b := New(sink, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	chunks := make(chan []byte)
	errc := make(chan error, 1)
	cancel()

	_, err := b.Pump(ctx, chunks, errc)
	require.Error(t, err)
	assert.False(t, sink.finalized)
}

func TestBridgeBytesWrittenTracksFlushes(t *testing.T) {
	sink := &fakeSink{}
	b := New(sink, &Config{BufferSize: 2})

	n, err := b.send([]byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(2), b.BytesWritten())
}

func TestDefaultConfigBufferSize(t *testing.T) {
	assert.Equal(t, DefaultBufferSize, DefaultConfig().BufferSize)
}

func TestNewWithNilConfig(t *testing.T) {
	b := New(&fakeSink{}, nil)
	assert.Equal(t, DefaultBufferSize, b.capacity)
}

func TestBridgeIdempotentFinalize(t *testing.T) {
	sink := &fakeSink{}
	b := New(sink, DefaultConfig())

	_, err := b.send(nil)
	require.NoError(t, err)
	_, err = b.send(nil)
	require.NoError(t, err)
}

func TestBridgeClosePutsBufferBack(t *testing.T) {
	sink := &fakeSink{}
	b := New(sink, &Config{BufferSize: 4096})
	b.Close()
	assert.Nil(t, b.buf)
}

func TestBridgePumpRespectsContextDuringWait(t *testing.T) {
	sink := &fakeSink{}
	b := New(sink, DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	chunks := make(chan []byte)
	errc := make(chan error)

	start := time.Now()
	_, err := b.Pump(ctx, chunks, errc)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
