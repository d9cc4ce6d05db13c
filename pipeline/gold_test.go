package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreason-ai/pmc-etl/jats"
)

func TestTransformGold(t *testing.T) {
	rec := &jats.Record{
		IsRetracted:      true,
		ManifestMetadata: map[string]interface{}{"license_type": "CC BY"},
		IngestionMetadata: jats.IngestionMetadata{
			SourceFilePath: "oa_comm/xml/all/PMC1.xml",
		},
	}
	rec.PMCID = str("1")
	rec.Title = str("Title")
	rec.ArticleType = jats.ArticleTypeReview
	rec.DatePublished = str("2021-06-01")
	rec.Keywords = []string{"b", "a", "b"}
	rec.Authors = []jats.Author{
		{Surname: str("Smith"), GivenNames: str("Jane"), Affiliations: []string{"Uni B", "Uni A"}},
		{Surname: str("Doe"), Affiliations: []string{"Uni A"}},
		{},
		{GivenNames: str("Prince")},
	}
	rec.Funding = []jats.FundingEntry{
		{Agency: str("NIH"), GrantID: str("R01")},
		{Agency: str("Wellcome")},
		{Agency: str("NIH"), GrantID: str("K99")},
		{GrantID: str("R01")},
	}

	g := TransformGold(rec)

	assert.Equal(t, str("1"), g.PMCID)
	assert.Equal(t, jats.ArticleTypeReview, g.ArticleType)
	require.NotNil(t, g.PubYear)
	assert.Equal(t, 2021, *g.PubYear)
	assert.Equal(t, "Jane Smith; Doe; Prince", g.AuthorsDisplay)
	assert.Equal(t, []string{"Uni A", "Uni B"}, g.AffiliationsText)
	assert.Equal(t, []string{"K99", "R01"}, g.GrantIDs)
	assert.Equal(t, []string{"NIH", "Wellcome"}, g.AgencyNames)
	assert.Equal(t, []string{"b", "a", "b"}, g.Keywords)
	assert.Equal(t, str("CC BY"), g.LicenseType)
	assert.True(t, g.IsCommercialSafe)
	assert.True(t, g.IsRetracted)
	assert.Equal(t, "oa_comm/xml/all/PMC1.xml", g.SourceFilePath)
}

func TestTransformGold_Empty(t *testing.T) {
	g := TransformGold(&jats.Record{})

	assert.Nil(t, g.PubYear)
	assert.Nil(t, g.LicenseType)
	assert.False(t, g.IsCommercialSafe)
	assert.Equal(t, "", g.AuthorsDisplay)

	blob, err := json.Marshal(g)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(blob, &doc))
	for _, k := range []string{"keywords", "affiliations_text", "grant_ids", "agency_names"} {
		assert.Equal(t, []interface{}{}, doc[k], k)
	}
}

func TestIsCommercialSafe(t *testing.T) {
	for path, want := range map[string]bool{
		"oa_comm/xml/all/PMC1.xml":    true,
		"oa_noncomm/xml/all/PMC1.xml": false,
		"oa_other/xml/all/PMC1.xml":   false,
		"":                            false,
	} {
		assert.Equal(t, want, isCommercialSafe(path), path)
	}
}
