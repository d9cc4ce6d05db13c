package sink

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/coreason-ai/pmc-etl/s3"
)

// S3 buffers JSON lines per layer and uploads them as numbered part objects
// under <prefix>/<layer>/<table>_<timestamp>_<part>.jsonl. A part is
// uploaded as soon as its buffer reaches Options.PartSize, the remainder
// when the sink is flushed, so at most one part per layer is held in memory.
type S3 struct {
	storage  s3.ObjectStorage
	bucket   string
	prefix   string
	stamp    string
	opts     Options
	partSize int

	mu      sync.Mutex
	buffers map[Layer]*bytes.Buffer
	parts   map[Layer]int
}

var _ Sink = (*S3)(nil)

func NewS3(storage s3.ObjectStorage, bucket, prefix string, now time.Time, opts Options) *S3 {
	partSize := opts.PartSize
	if partSize <= 0 {
		partSize = DefaultPartSize
	}
	return &S3{
		storage:  storage,
		bucket:   bucket,
		prefix:   prefix,
		stamp:    now.UTC().Format("20060102T150405Z"),
		opts:     opts,
		partSize: partSize,
		buffers:  map[Layer]*bytes.Buffer{},
		parts:    map[Layer]int{},
	}
}

// URI returns the object that receives the given part of layer.
func (s *S3) URI(layer Layer, part int) string {
	name := fmt.Sprintf("%s_%s_%04d.jsonl", s.opts.table(layer), s.stamp, part)
	return s3.URI(s.bucket, path.Join(s.prefix, string(layer), name))
}

func (s *S3) Write(ctx context.Context, layer Layer, key string, v interface{}) error {
	blob, err := encode(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.buffers[layer]
	if !ok {
		buf = &bytes.Buffer{}
		s.buffers[layer] = buf
	}
	buf.Write(blob)
	buf.WriteByte('\n')

	if buf.Len() < s.partSize {
		return nil
	}
	return s.upload(ctx, layer)
}

// Close uploads the buffered layers.
func (s *S3) Close() error {
	return s.Flush(context.Background())
}

// Flush uploads the partial parts of every layer.
func (s *S3) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, layer := range Layers {
		if _, ok := s.buffers[layer]; !ok {
			continue
		}
		if err := s.upload(ctx, layer); err != nil {
			return err
		}
	}
	return nil
}

// upload sends the buffer of layer as the next part. The buffer is kept
// when the upload fails so that a later Flush can retry it.
func (s *S3) upload(ctx context.Context, layer Layer) error {
	buf := s.buffers[layer]
	part := s.parts[layer]
	if err := s.storage.Upload(ctx, bytes.NewReader(buf.Bytes()), s.URI(layer, part)); err != nil {
		return errors.Wrapf(err, "uploading %s layer part %d", layer, part)
	}
	s.parts[layer] = part + 1
	delete(s.buffers, layer)
	return nil
}
