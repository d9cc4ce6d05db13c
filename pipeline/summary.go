package pipeline

import (
	"io"
	"time"

	"github.com/go-logfmt/logfmt"
)

// Summary counts what happened during a run.
type Summary struct {
	RunID  string
	Source string

	Fetched     int64
	FetchFailed int64
	Parsed      int64
	Empty       int64
	Absent      int64
	Malformed   int64
	Failed      int64
	Violations  int64
	Written     int64

	// HighWaterMark is the mark saved by the run, zero when none was.
	HighWaterMark time.Time
	Duration      time.Duration
}

func (s *Summary) keyvals() []interface{} {
	kv := []interface{}{
		"run_id", s.RunID,
		"source", s.Source,
		"fetched", s.Fetched,
		"fetch_failed", s.FetchFailed,
		"parsed", s.Parsed,
		"empty", s.Empty,
		"absent", s.Absent,
		"malformed", s.Malformed,
		"failed", s.Failed,
		"violations", s.Violations,
		"written", s.Written,
	}
	if !s.HighWaterMark.IsZero() {
		kv = append(kv, "high_water_mark", s.HighWaterMark.UTC().Format(time.RFC3339))
	}
	return append(kv, "duration", s.Duration.Round(time.Millisecond).String())
}

// WriteTo writes the summary as a single logfmt record.
func (s *Summary) WriteTo(w io.Writer) (int64, error) {
	blob, err := logfmt.MarshalKeyvals(s.keyvals()...)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(append(blob, '\n'))
	return int64(n), err
}

func (s *Summary) String() string {
	blob, _ := logfmt.MarshalKeyvals(s.keyvals()...)
	return string(blob)
}
