package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cast"
)

// FileStore keeps high-water marks in a small JSON document.
type FileStore struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

func NewFileStore(fs afero.Fs, path string) *FileStore {
	return &FileStore{fs: fs, path: path}
}

func (s *FileStore) load() (map[string]interface{}, error) {
	blob, err := afero.ReadFile(s.fs, s.path)
	if os.IsNotExist(err) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading state file")
	}
	values := map[string]interface{}{}
	if len(blob) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(blob, &values); err != nil {
		return nil, errors.Wrapf(err, "decoding state file %s", s.path)
	}
	return values, nil
}

func (s *FileStore) HighWaterMark(ctx context.Context, name string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return time.Time{}, false, err
	}
	raw, ok := values[name]
	if !ok || raw == nil {
		return time.Time{}, false, nil
	}
	t, err := cast.ToTimeE(raw)
	if err != nil {
		return time.Time{}, false, errors.Wrapf(err, "invalid high-water mark for %s", name)
	}
	return t.UTC(), true, nil
}

func (s *FileStore) SetHighWaterMark(ctx context.Context, name string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[name] = t.UTC().Format(time.RFC3339Nano)

	blob, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "creating state directory")
		}
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, blob, 0o644); err != nil {
		return errors.Wrap(err, "writing state file")
	}
	return errors.Wrap(s.fs.Rename(tmp, s.path), "replacing state file")
}
