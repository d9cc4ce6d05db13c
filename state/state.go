// Package state persists the high-water mark of incremental runs, i.e. the
// most recent "Last Updated" timestamp seen in the manifest by the last
// successful run.
package state

import (
	"context"
	"time"
)

// DefaultName is the key under which the ETL stores its high-water mark.
const DefaultName = "pmc_oa_manifest"

type Store interface {
	// HighWaterMark returns the stored value, ok is false when nothing has
	// been stored yet.
	HighWaterMark(ctx context.Context, name string) (t time.Time, ok bool, err error)
	SetHighWaterMark(ctx context.Context, name string, t time.Time) error
}
