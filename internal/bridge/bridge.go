// Package bridge implements the streaming producer/consumer pipe used
// between a source Adapter's Download and a destination Adapter's
// Upload Sink: a bounded buffer that decouples a download that may
// burst chunks from an upload sink that may have its own min-write-size
// policy, without holding the whole object in memory.
package bridge

import (
	"context"
	"sync"

	"github.com/transferd/transferd/internal/buffer"
	"github.com/transferd/transferd/pkg/errors"
	"github.com/transferd/transferd/pkg/types"
)

// DefaultBufferSize is the default bridge capacity: a small multiple of
// the 4 KiB page size, the same order of magnitude the teacher's
// WriteBuffer uses for its per-key flush threshold before scaling down
// to a single in-flight stream.
const DefaultBufferSize = 16 * 1024

// Config controls a Bridge's buffering behavior.
type Config struct {
	// BufferSize is the byte capacity of the pending-write buffer
	// before Bridge flushes to the destination Sink.
	BufferSize int
}

// DefaultConfig returns a Config using DefaultBufferSize.
func DefaultConfig() *Config {
	return &Config{BufferSize: DefaultBufferSize}
}

// Bridge buffers chunks from a producer until it has accumulated
// Config.BufferSize bytes, then flushes them to a destination Sink with
// a single send. Sending nil (via Finalize) flushes any remainder and
// is idempotent.
type Bridge struct {
	mu       sync.Mutex
	sink     types.Sink
	capacity int
	buf      []byte
	written  int64
}

// New returns a Bridge writing through sink, buffering up to
// cfg.BufferSize bytes between flushes. A nil cfg uses DefaultConfig.
func New(sink types.Sink, cfg *Config) *Bridge {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	capacity := cfg.BufferSize
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Bridge{
		sink:     sink,
		capacity: capacity,
		buf:      buffer.GetBuffer(capacity)[:0],
	}
}

// Close returns the Bridge's internal buffer to the shared byte pool.
// Callers must not use the Bridge after calling Close.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	buffer.PutBuffer(b.buf[:cap(b.buf)])
	b.buf = nil
}

// Pump drains chunks from the producer channels until they close or an
// error arrives, flushing buffered data to the Sink as the buffer fills
// and finalizing on clean completion. It polls ctx between chunks;
// on cancellation it returns immediately without finalizing, leaving
// any partial destination state for the caller to remove.
//
// Bytes reach the Sink in exactly the order they are received from
// chunks, with no insertion, deletion, or reordering.
func (b *Bridge) Pump(ctx context.Context, chunks <-chan []byte, errc <-chan error) (int64, error) {
	for {
		select {
		case <-ctx.Done():
			return b.written, errors.NewError(errors.ErrCodeOperationCanceled, "transfer canceled").
				WithCause(ctx.Err())

		case chunk, ok := <-chunks:
			if !ok {
				if err := <-errc; err != nil {
					return b.written, err
				}
				return b.finish()
			}
			if _, err := b.send(chunk); err != nil {
				return b.written, err
			}
		}
	}
}

// send appends chunk to the pending buffer, flushing to the Sink once
// capacity is reached. A nil chunk forces an immediate flush.
func (b *Bridge) send(chunk []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if chunk == nil {
		return b.flushLocked()
	}

	b.buf = append(b.buf, chunk...)
	if len(b.buf) >= b.capacity {
		return b.flushLocked()
	}
	return len(chunk), nil
}

func (b *Bridge) flushLocked() (int, error) {
	if len(b.buf) == 0 {
		return 0, nil
	}
	n, err := b.sink.Write(b.buf)
	b.written += int64(n)
	b.buf = b.buf[:0]
	if err != nil {
		return n, err
	}
	return n, nil
}

// finish flushes any remaining buffered bytes and finalizes the Sink,
// completing the destination write.
func (b *Bridge) finish() (int64, error) {
	if _, err := b.send(nil); err != nil {
		return b.written, err
	}
	n, err := b.sink.Finalize()
	if err != nil {
		return b.written, err
	}
	return int64(n), nil
}

// BytesWritten reports the number of bytes flushed to the Sink so far.
func (b *Bridge) BytesWritten() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.written
}
