package sink

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// JSONL appends one JSON document per line to a file per layer named
// <prefix>_<layer>.jsonl. Files are opened lazily in append mode.
type JSONL struct {
	fs   afero.Fs
	dir  string
	opts Options

	mu    sync.Mutex
	files map[Layer]afero.File
}

var _ Sink = (*JSONL)(nil)

func NewJSONL(fs afero.Fs, dir string, opts Options) *JSONL {
	return &JSONL{
		fs:    fs,
		dir:   dir,
		opts:  opts,
		files: map[Layer]afero.File{},
	}
}

// Path returns the file that receives the records of layer.
func (s *JSONL) Path(layer Layer) string {
	return filepath.Join(s.dir, s.opts.table(layer)+".jsonl")
}

func (s *JSONL) Write(ctx context.Context, layer Layer, key string, v interface{}) error {
	blob, err := encode(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[layer]
	if !ok {
		if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
			return errors.Wrap(err, "creating output directory")
		}
		f, err = s.fs.OpenFile(s.Path(layer), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.Wrapf(err, "opening %s", s.Path(layer))
		}
		s.files[layer] = f
	}

	_, err = f.Write(append(blob, '\n'))
	return errors.Wrapf(err, "writing %s", f.Name())
}

// Flush syncs the open files to stable storage.
func (s *JSONL) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, layer := range Layers {
		f, ok := s.files[layer]
		if !ok {
			continue
		}
		if err := f.Sync(); err != nil {
			return errors.Wrapf(err, "syncing %s", f.Name())
		}
	}
	return nil
}

func (s *JSONL) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var first error
	for layer, f := range s.files {
		if err := f.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "closing %s", f.Name())
		}
		delete(s.files, layer)
	}
	return first
}
