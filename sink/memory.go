package sink

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory keeps the encoded records of every layer in memory, keyed like the
// database sinks. It backs dry runs.
type Memory struct {
	mu      sync.Mutex
	records map[Layer]map[string]json.RawMessage
	order   map[Layer][]string
}

var _ Sink = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		records: map[Layer]map[string]json.RawMessage{},
		order:   map[Layer][]string{},
	}
}

func (s *Memory) Write(ctx context.Context, layer Layer, key string, v interface{}) error {
	blob, err := encode(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records[layer] == nil {
		s.records[layer] = map[string]json.RawMessage{}
	}
	if _, ok := s.records[layer][key]; !ok {
		s.order[layer] = append(s.order[layer], key)
	}
	s.records[layer][key] = blob
	return nil
}

// Keys returns the keys of a layer in first-write order.
func (s *Memory) Keys(layer Layer) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order[layer]...)
}

// Get returns the last record written under key.
func (s *Memory) Get(layer Layer, key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.records[layer][key]
	return blob, ok
}

func (s *Memory) Flush(ctx context.Context) error { return nil }

func (s *Memory) Close() error { return nil }
