package jats

import (
	"encoding/json"
	"time"
)

// ArticleType is the closed classification of an article.
type ArticleType string

const (
	ArticleTypeResearch   ArticleType = "RESEARCH"
	ArticleTypeReview     ArticleType = "REVIEW"
	ArticleTypeCaseReport ArticleType = "CASE_REPORT"
	ArticleTypeOther      ArticleType = "OTHER"
)

// ArticleIdentity carries the canonical identifiers of an article. The three
// identifiers are independently optional, ArticleType is always populated.
type ArticleIdentity struct {
	PMCID       *string     `json:"pmcid"`
	PMID        *string     `json:"pmid"`
	DOI         *string     `json:"doi"`
	ArticleType ArticleType `json:"article_type"`
}

// ArticleDates holds YYYY-MM-DD strings. A field is nil when no year could be
// found for the corresponding event.
type ArticleDates struct {
	DatePublished *string `json:"date_published"`
	DateReceived  *string `json:"date_received"`
	DateAccepted  *string `json:"date_accepted"`
}

// Author is a contributor with its affiliations already resolved to text.
type Author struct {
	Surname      *string  `json:"surname"`
	GivenNames   *string  `json:"given_names"`
	Affiliations []string `json:"affiliations"`
}

// FundingEntry is a single (agency, grant) relationship. At least one of the
// two fields is set.
type FundingEntry struct {
	Agency  *string `json:"agency"`
	GrantID *string `json:"grant_id"`
}

// ArticleContent holds the flattened textual fields of an article.
type ArticleContent struct {
	Title       *string `json:"title"`
	Abstract    *string `json:"abstract"`
	JournalName *string `json:"journal_name"`
}

// Article is everything extracted from a single article element.
type Article struct {
	ArticleIdentity
	ArticleDates
	ArticleContent
	Keywords []string       `json:"keywords"`
	Authors  []Author       `json:"authors"`
	Funding  []FundingEntry `json:"funding"`
}

// IngestionMetadata describes where and when a payload was acquired.
type IngestionMetadata struct {
	SourceFilePath  string     `json:"source_file_path"`
	IngestionTS     *time.Time `json:"ingestion_ts"`
	IngestionSource string     `json:"ingestion_source"`
}

// Passthrough is the caller context embedded into a Record. Only the
// "is_retracted" entry of Manifest is interpreted.
type Passthrough struct {
	Manifest  map[string]interface{}
	Ingestion IngestionMetadata
}

// Record is the parsed article together with its pass-through context.
type Record struct {
	Article
	IsRetracted       bool                   `json:"is_retracted"`
	ManifestMetadata  map[string]interface{} `json:"manifest_metadata"`
	IngestionMetadata IngestionMetadata      `json:"ingestion_metadata"`
}

// MarshalJSON guarantees that list fields are rendered as arrays.
func (r Record) MarshalJSON() ([]byte, error) {
	type recordAlias Record
	alias := recordAlias(r)
	if alias.Keywords == nil {
		alias.Keywords = []string{}
	}
	if alias.Authors == nil {
		alias.Authors = []Author{}
	}
	if alias.Funding == nil {
		alias.Funding = []FundingEntry{}
	}
	authors := make([]Author, len(alias.Authors))
	for i, a := range alias.Authors {
		if a.Affiliations == nil {
			a.Affiliations = []string{}
		}
		authors[i] = a
	}
	alias.Authors = authors
	if alias.ManifestMetadata == nil {
		alias.ManifestMetadata = map[string]interface{}{}
	}
	return json.Marshal(alias)
}
