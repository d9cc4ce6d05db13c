package pipeline

import (
	"sort"
	"strconv"
	"strings"

	"github.com/coreason-ai/pmc-etl/jats"
)

// GoldRecord is the analytics view of an article.
type GoldRecord struct {
	PMCID            *string          `json:"pmcid"`
	PMID             *string          `json:"pmid"`
	DOI              *string          `json:"doi"`
	ArticleType      jats.ArticleType `json:"article_type"`
	Title            *string          `json:"title"`
	Abstract         *string          `json:"abstract"`
	JournalName      *string          `json:"journal_name"`
	DatePublished    *string          `json:"date_published"`
	PubYear          *int             `json:"pub_year"`
	Keywords         []string         `json:"keywords"`
	AuthorsDisplay   string           `json:"authors_display"`
	AffiliationsText []string         `json:"affiliations_text"`
	GrantIDs         []string         `json:"grant_ids"`
	AgencyNames      []string         `json:"agency_names"`
	LicenseType      *string          `json:"license_type"`
	IsCommercialSafe bool             `json:"is_commercial_safe"`
	IsRetracted      bool             `json:"is_retracted"`
	SourceFilePath   string           `json:"source_file_path"`
}

// TransformGold flattens a silver record. Lists are sorted and deduplicated
// and never nil.
func TransformGold(rec *jats.Record) GoldRecord {
	g := GoldRecord{
		PMCID:            rec.PMCID,
		PMID:             rec.PMID,
		DOI:              rec.DOI,
		ArticleType:      rec.ArticleType,
		Title:            rec.Title,
		Abstract:         rec.Abstract,
		JournalName:      rec.JournalName,
		DatePublished:    rec.DatePublished,
		PubYear:          pubYear(rec.DatePublished),
		Keywords:         append([]string{}, rec.Keywords...),
		AuthorsDisplay:   authorsDisplay(rec.Authors),
		IsCommercialSafe: isCommercialSafe(rec.IngestionMetadata.SourceFilePath),
		IsRetracted:      rec.IsRetracted,
		SourceFilePath:   rec.IngestionMetadata.SourceFilePath,
	}

	var affiliations, grants, agencies []string
	for _, a := range rec.Authors {
		affiliations = append(affiliations, a.Affiliations...)
	}
	for _, f := range rec.Funding {
		if f.GrantID != nil {
			grants = append(grants, *f.GrantID)
		}
		if f.Agency != nil {
			agencies = append(agencies, *f.Agency)
		}
	}
	g.AffiliationsText = sortedSet(affiliations)
	g.GrantIDs = sortedSet(grants)
	g.AgencyNames = sortedSet(agencies)

	if v, ok := rec.ManifestMetadata["license_type"].(string); ok && v != "" {
		g.LicenseType = &v
	}
	return g
}

// authorsDisplay renders "Given Surname" for every author joined by "; ".
// Authors without any name are left out.
func authorsDisplay(authors []jats.Author) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		var parts []string
		if a.GivenNames != nil {
			parts = append(parts, *a.GivenNames)
		}
		if a.Surname != nil {
			parts = append(parts, *a.Surname)
		}
		if len(parts) > 0 {
			names = append(names, strings.Join(parts, " "))
		}
	}
	return strings.Join(names, "; ")
}

// isCommercialSafe tells whether the file belongs to the commercial use
// subset of the Open Access dataset.
func isCommercialSafe(path string) bool {
	return strings.Contains(path, "oa_comm") && !strings.Contains(path, "oa_noncomm")
}

func pubYear(date *string) *int {
	if date == nil || len(*date) < 4 {
		return nil
	}
	y, err := strconv.Atoi((*date)[:4])
	if err != nil {
		return nil
	}
	return &y
}

func sortedSet(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
