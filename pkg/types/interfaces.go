package types

import (
	"context"
	"time"
)

// Entry describes one immediate child yielded by Adapter.Listdir or one
// node visited by Adapter.Walk: a file or directory, distinguished by
// IsDir, with the metadata available from the listing call itself.
type Entry struct {
	Adapter Adapter
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// WalkFunc is invoked once per directory visited by Adapter.Walk, in
// top-down order, with the directories and files found directly under
// it. Returning an error aborts the walk.
type WalkFunc func(dir Adapter, dirs, files []Entry) error

// Sink is the streaming-write endpoint returned by Adapter.Upload (§4.2,
// §9 design note: modeled as an explicit capability rather than a
// bidirectional generator). Write may be called any number of times;
// Finalize flushes any buffered tail and must be idempotent once the
// sink is closed.
type Sink interface {
	Write(chunk []byte) (int, error)
	Finalize() (int, error)
}

// Adapter is the uniform capability set over backend kinds (§4.1):
// local filesystem, S3, and S3-compatible object stores. An Adapter
// instance is anchored at Root and carries whatever client context it
// needs to issue backend calls.
type Adapter interface {
	// Kind reports which backend family this adapter belongs to.
	Kind() BackendKind

	// Root returns the absolute path (including any backend prefix,
	// e.g. "/bucket/key" for S3-family) this adapter is anchored at.
	Root() string

	// Listdir yields the immediate children of Root. It must not
	// recurse.
	Listdir(ctx context.Context) ([]Entry, error)

	// Walk performs a top-down traversal rooted at Root, invoking fn
	// once per directory.
	Walk(ctx context.Context, fn WalkFunc) error

	// Exists reports whether the object or path this adapter is
	// anchored at is present in the backend.
	Exists(ctx context.Context) (bool, error)

	// Makedirs creates Root as a directory, idempotently. For
	// S3-family this writes a zero-byte object whose key ends in "/".
	Makedirs(ctx context.Context) error

	// Size, Mtime, and Ctime report cached metadata, populated by
	// whichever listing or stat call produced this adapter. Callers
	// that need fresh metadata should re-stat via Exists or construct
	// a new adapter.
	Size() int64
	Mtime() time.Time
	Ctime() time.Time

	// Download returns a finite, non-restartable channel of byte
	// chunks read from Root. Errors encountered mid-stream are
	// returned on errc.
	Download(ctx context.Context) (chunks <-chan []byte, errc <-chan error)

	// Upload returns a streaming write Sink targeting Root.
	Upload(ctx context.Context) (Sink, error)

	// Remove deletes the file or directory tree at Root. Directory
	// removal is optional for S3-family backends, which may return an
	// error wrapping ErrCodeNotImplemented for bucket-level delete.
	Remove(ctx context.Context) error

	// WithRoot returns a copy of this adapter anchored at a different
	// root but sharing the same backend client/credentials — used by
	// the Queue Feeder to turn an account-level adapter into a
	// row-specific source/destination handle.
	WithRoot(root string) Adapter
}

// MetricsCollector defines the metrics collection interface implemented
// by pkg/metrics and consumed by every component that reports transfer
// activity.
type MetricsCollector interface {
	RecordTransferStarted(sourceKind, destKind BackendKind)
	RecordTransferFinished(sourceKind, destKind BackendKind, status Status, bytes int64, duration time.Duration)
	RecordQueueDepth(depth int)
	RecordWorkerCount(count int)
	RecordError(operation string, err error)
}
