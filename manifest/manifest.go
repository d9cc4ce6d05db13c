// Package manifest reads the PMC Open Access file list, a CSV document with
// one row per article package:
//
//	File Path,Accession ID,Last Updated (UTC),PMID,License,Retracted
//	oa_comm/xml/all/PMC1.xml,PMC1,2024-01-01 12:00:00,1234,CC BY,no
package manifest

import (
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TimestampLayout is the format of the "Last Updated (UTC)" column.
const TimestampLayout = "2006-01-02 15:04:05"

const minColumns = 6

// Record is a single row of the file list.
type Record struct {
	FilePath    string
	AccessionID string
	LastUpdated time.Time
	PMID        *string
	LicenseType string
	IsRetracted bool
}

// Metadata renders the record as the pass-through map embedded in parsed
// articles.
func (r Record) Metadata() map[string]interface{} {
	var pmid interface{}
	if r.PMID != nil {
		pmid = *r.PMID
	}
	return map[string]interface{}{
		"file_path":    r.FilePath,
		"accession_id": r.AccessionID,
		"last_updated": r.LastUpdated.UTC().Format(time.RFC3339),
		"pmid":         pmid,
		"license_type": r.LicenseType,
		"is_retracted": r.IsRetracted,
	}
}

// Reader yields the records of a file list, optionally filtered by a
// high-water mark. The zero cutoff disables filtering.
type Reader struct {
	csv    *csv.Reader
	cutoff time.Time
	logger logrus.FieldLogger

	line       int
	headerRead bool
}

func NewReader(logger logrus.FieldLogger, r io.Reader, cutoff time.Time) *Reader {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(encoding.Nop.NewDecoder())))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	return &Reader{
		csv:    cr,
		cutoff: cutoff,
		logger: logger,
	}
}

// Next returns the next record that passes the filter, or io.EOF.
//
// A record is kept when it was updated strictly after the cutoff or when it
// is flagged as retracted, whatever its timestamp. Rows that are too short or
// carry an unparseable timestamp are skipped.
func (r *Reader) Next() (*Record, error) {
	if !r.headerRead {
		r.headerRead = true
		if _, err := r.read(); err != nil {
			return nil, err
		}
	}

	for {
		row, err := r.read()
		if err != nil {
			return nil, err
		}
		rec, ok := r.parseRow(row)
		if !ok {
			continue
		}
		if !r.cutoff.IsZero() && !rec.LastUpdated.After(r.cutoff) && !rec.IsRetracted {
			continue
		}
		return rec, nil
	}
}

func (r *Reader) read() ([]string, error) {
	for {
		row, err := r.csv.Read()
		r.line++
		if err == io.EOF {
			return nil, io.EOF
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			r.logger.WithField("line", pe.Line).WithError(err).Debug("Skipping unreadable manifest row")
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading manifest")
		}
		return row, nil
	}
}

func (r *Reader) parseRow(row []string) (*Record, bool) {
	if len(row) < minColumns {
		r.logger.WithField("line", r.line).Debug("Skipping short manifest row")
		return nil, false
	}

	ts, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(row[2]), time.UTC)
	if err != nil {
		r.logger.WithField("line", r.line).WithError(err).Debug("Skipping manifest row with invalid timestamp")
		return nil, false
	}

	rec := &Record{
		FilePath:    strings.TrimSpace(row[0]),
		AccessionID: strings.TrimSpace(row[1]),
		LastUpdated: ts,
		LicenseType: strings.TrimSpace(row[4]),
		IsRetracted: strings.EqualFold(strings.TrimSpace(row[5]), "yes"),
	}
	if pmid := strings.TrimSpace(row[3]); pmid != "" {
		rec.PMID = &pmid
	}
	return rec, true
}

// ReadAll drains the reader.
func (r *Reader) ReadAll() ([]Record, error) {
	var records []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, *rec)
	}
}
