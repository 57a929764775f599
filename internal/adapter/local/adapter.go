// Package local implements types.Adapter over the host filesystem.
package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/transferd/transferd/pkg/errors"
	"github.com/transferd/transferd/pkg/pathutil"
	"github.com/transferd/transferd/pkg/types"
)

// defaultChunkSize is the read/write buffer size used when streaming
// through Download/Upload.
const defaultChunkSize = 256 * 1024

// Adapter implements types.Adapter over a directory or file on the
// local filesystem.
type Adapter struct {
	root      string
	size      int64
	mtime     time.Time
	ctime     time.Time
	chunkSize int
}

// New constructs an Adapter anchored at root. It stats root once at
// construction time; Exists re-stats root and refreshes the cached
// metadata.
func New(root string) (*Adapter, error) {
	root = pathutil.NormalizeLocal(root)

	a := &Adapter{root: root, chunkSize: defaultChunkSize}

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return a, nil
		}
		return nil, errors.NewError(errors.ErrCodePathInvalid, "failed to stat local path").
			WithContext("root", root).
			WithCause(err)
	}

	a.size = info.Size()
	a.mtime = info.ModTime()
	a.ctime = statCtime(info)

	return a, nil
}

// Kind reports BackendLocal.
func (a *Adapter) Kind() types.BackendKind { return types.BackendLocal }

// Root returns the absolute local path this adapter is anchored at.
func (a *Adapter) Root() string { return a.root }

// Listdir yields the immediate children of Root.
func (a *Adapter) Listdir(ctx context.Context) ([]types.Entry, error) {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeFileNotFound, "failed to list directory").
			WithContext("root", a.root).
			WithCause(err)
	}

	result := make([]types.Entry, 0, len(entries))
	for _, de := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		info, err := de.Info()
		if err != nil {
			continue
		}

		child, err := New(filepath.Join(a.root, de.Name()))
		if err != nil {
			continue
		}

		result = append(result, types.Entry{
			Adapter: child,
			IsDir:   info.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	return result, nil
}

// Walk performs a top-down traversal rooted at Root.
func (a *Adapter) Walk(ctx context.Context, fn types.WalkFunc) error {
	return a.walk(ctx, a, fn)
}

func (a *Adapter) walk(ctx context.Context, dir *Adapter, fn types.WalkFunc) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := dir.Listdir(ctx)
	if err != nil {
		return err
	}

	var dirs, files []types.Entry
	for _, e := range entries {
		if e.IsDir {
			dirs = append(dirs, e)
		} else {
			files = append(files, e)
		}
	}

	if err := fn(dir, dirs, files); err != nil {
		return err
	}

	for _, d := range dirs {
		child, ok := d.Adapter.(*Adapter)
		if !ok {
			continue
		}
		if err := a.walk(ctx, child, fn); err != nil {
			return err
		}
	}

	return nil
}

// Exists reports whether Root is present on disk. As a side effect it
// refreshes Size/Mtime/Ctime from the fresh stat, the documented way to
// re-read metadata without constructing a new Adapter.
func (a *Adapter) Exists(ctx context.Context) (bool, error) {
	info, err := os.Stat(a.root)
	if err == nil {
		a.size = info.Size()
		a.mtime = info.ModTime()
		a.ctime = statCtime(info)
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.NewError(errors.ErrCodePathInvalid, "failed to stat local path").
		WithContext("root", a.root).
		WithCause(err)
}

// Makedirs creates Root as a directory, idempotently.
func (a *Adapter) Makedirs(ctx context.Context) error {
	if err := os.MkdirAll(a.root, 0o750); err != nil {
		return errors.NewError(errors.ErrCodePermissionDenied, "failed to create directory").
			WithContext("root", a.root).
			WithCause(err)
	}
	return nil
}

// Size returns the cached size captured at construction time or by the
// last Exists call.
func (a *Adapter) Size() int64 { return a.size }

// Mtime returns the cached modification time captured at construction
// time or by the last Exists call.
func (a *Adapter) Mtime() time.Time { return a.mtime }

// Ctime returns the cached change time captured at construction time
// or by the last Exists call.
func (a *Adapter) Ctime() time.Time { return a.ctime }

// Download streams Root's contents in chunkSize pieces.
func (a *Adapter) Download(ctx context.Context) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errc)

		f, err := os.Open(a.root)
		if err != nil {
			errc <- errors.NewError(errors.ErrCodeFileNotFound, "failed to open local file").
				WithContext("root", a.root).
				WithCause(err)
			return
		}
		defer f.Close()

		buf := make([]byte, a.chunkSize)
		for {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			default:
			}

			n, err := f.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				errc <- errors.NewError(errors.ErrCodeStorageRead, "failed to read local file").
					WithContext("root", a.root).
					WithCause(err)
				return
			}
		}
	}()

	return chunks, errc
}

// Upload returns a streaming Sink that writes to a temp file alongside
// Root and renames it into place on Finalize, so a failed transfer
// never leaves a partial file at the destination path.
func (a *Adapter) Upload(ctx context.Context) (types.Sink, error) {
	if err := os.MkdirAll(filepath.Dir(a.root), 0o750); err != nil {
		return nil, errors.NewError(errors.ErrCodePermissionDenied, "failed to create destination directory").
			WithContext("root", a.root).
			WithCause(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(a.root), ".transferd-*")
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeStorageWrite, "failed to create temp file").
			WithContext("root", a.root).
			WithCause(err)
	}

	return &sink{f: tmp, finalPath: a.root}, nil
}

type sink struct {
	f         *os.File
	finalPath string
	written   int
}

func (s *sink) Write(chunk []byte) (int, error) {
	n, err := s.f.Write(chunk)
	s.written += n
	if err != nil {
		return n, errors.NewError(errors.ErrCodeStorageWrite, "failed to write local file").
			WithContext("path", s.finalPath).
			WithCause(err)
	}
	return n, nil
}

func (s *sink) Finalize() (int, error) {
	if err := s.f.Sync(); err != nil {
		_ = os.Remove(s.f.Name())
		return s.written, errors.NewError(errors.ErrCodeStorageWrite, "failed to sync local file").
			WithContext("path", s.finalPath).
			WithCause(err)
	}
	if err := s.f.Close(); err != nil {
		_ = os.Remove(s.f.Name())
		return s.written, errors.NewError(errors.ErrCodeStorageWrite, "failed to close local file").
			WithContext("path", s.finalPath).
			WithCause(err)
	}
	if err := os.Rename(s.f.Name(), s.finalPath); err != nil {
		_ = os.Remove(s.f.Name())
		return s.written, errors.NewError(errors.ErrCodeStorageWrite, "failed to rename temp file into place").
			WithContext("path", s.finalPath).
			WithCause(err)
	}
	return s.written, nil
}

// Remove deletes the file or directory tree at Root.
func (a *Adapter) Remove(ctx context.Context) error {
	if err := os.RemoveAll(a.root); err != nil {
		return errors.NewError(errors.ErrCodePermissionDenied, "failed to remove local path").
			WithContext("root", a.root).
			WithCause(err)
	}
	return nil
}

// WithRoot returns a new Adapter anchored at a different local path.
func (a *Adapter) WithRoot(root string) types.Adapter {
	child, err := New(root)
	if err != nil {
		return &Adapter{root: pathutil.NormalizeLocal(root), chunkSize: a.chunkSize}
	}
	return child
}
