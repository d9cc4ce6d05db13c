package pipeline

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/coreason-ai/pmc-etl/metrics"
	"github.com/coreason-ai/pmc-etl/source"
)

type fakeSource struct {
	files map[string][]byte
	kind  source.Kind
	calls []string
}

func newFakeSource(files map[string][]byte) *fakeSource {
	return &fakeSource{files: files, kind: source.KindS3}
}

func (f *fakeSource) GetFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.calls = append(f.calls, path)
	blob, ok := f.files[path]
	if !ok {
		return nil, errors.Errorf("%s: no such key", path)
	}
	return blob, nil
}

func (f *fakeSource) Source() source.Kind {
	return f.kind
}

// counterValue sums the series of a counter whose label matches value.
func counterValue(t *testing.T, m *metrics.Metrics, name, label, value string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					total += metric.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func str(s string) *string {
	return &s
}
