package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	"github.com/coreason-ai/pmc-etl/jats"
	"github.com/coreason-ai/pmc-etl/manifest"
	"github.com/coreason-ai/pmc-etl/source"
)

// Source is a Fetcher that can tell where its files currently come from.
type Source interface {
	source.Fetcher
	Source() source.Kind
}

// BronzeRecord is a raw payload as acquired, with its provenance.
type BronzeRecord struct {
	SourceFilePath   string                 `json:"source_file_path"`
	IngestionTS      time.Time              `json:"ingestion_ts"`
	IngestionDate    string                 `json:"ingestion_date"`
	IngestionSource  string                 `json:"ingestion_source"`
	RawXMLPayload    []byte                 `json:"raw_xml_payload"`
	PayloadXXH3      string                 `json:"payload_xxh3"`
	ManifestMetadata map[string]interface{} `json:"manifest_metadata"`
	LastUpdated      time.Time              `json:"last_updated"`
}

// MarshalJSON renders the payload as the XML text it holds. Payloads that
// are not valid UTF-8 are base64 encoded and flagged by
// raw_xml_payload_encoding so that no byte is lost.
func (b BronzeRecord) MarshalJSON() ([]byte, error) {
	type bronzeAlias BronzeRecord
	out := struct {
		bronzeAlias
		RawXMLPayload   string `json:"raw_xml_payload"`
		PayloadEncoding string `json:"raw_xml_payload_encoding,omitempty"`
	}{bronzeAlias: bronzeAlias(b)}

	if utf8.Valid(b.RawXMLPayload) {
		out.RawXMLPayload = string(b.RawXMLPayload)
	} else {
		out.RawXMLPayload = base64.StdEncoding.EncodeToString(b.RawXMLPayload)
		out.PayloadEncoding = "base64"
	}
	return json.Marshal(out)
}

// Passthrough returns the context handed to the article parser.
func (b *BronzeRecord) Passthrough() jats.Passthrough {
	ts := b.IngestionTS
	return jats.Passthrough{
		Manifest: b.ManifestMetadata,
		Ingestion: jats.IngestionMetadata{
			SourceFilePath:  b.SourceFilePath,
			IngestionTS:     &ts,
			IngestionSource: b.IngestionSource,
		},
	}
}

// Ingest fetches the payload of a manifest record and wraps it into a
// BronzeRecord.
func Ingest(ctx context.Context, src Source, rec manifest.Record, now time.Time) (*BronzeRecord, error) {
	payload, err := src.GetFile(ctx, rec.FilePath)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", rec.FilePath)
	}
	now = now.UTC()
	return &BronzeRecord{
		SourceFilePath:   rec.FilePath,
		IngestionTS:      now,
		IngestionDate:    now.Format("2006-01-02"),
		IngestionSource:  string(src.Source()),
		RawXMLPayload:    payload,
		PayloadXXH3:      PayloadHash(payload),
		ManifestMetadata: rec.Metadata(),
		LastUpdated:      rec.LastUpdated,
	}, nil
}

// PayloadHash is the hex encoded XXH3 64-bit digest of payload.
func PayloadHash(payload []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(payload))
}
