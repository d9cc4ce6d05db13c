package app

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreason-ai/pmc-etl/internal/testutil"
	"github.com/coreason-ai/pmc-etl/metrics"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var (
		output    bytes.Buffer
		errOutput bytes.Buffer
	)
	cmd := RootCommand(&output, &errOutput)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return output.String(), errOutput.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestMainHelp(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"pmc-etl", "help"}

	var (
		output    bytes.Buffer
		errOutput bytes.Buffer
	)
	err := Run(&output, &errOutput)

	require.NoError(t, err)
	assert.Contains(t, output.String(), "Available Commands")
	assert.Empty(t, errOutput.String())
}

func TestMainUnknownCommand(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"pmc-etl", "unknown"}

	err := Run(io.Discard, io.Discard)

	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestParse_JSON(t *testing.T) {
	path := writeFile(t, "PMC1.xml", string(testutil.Fixture(t, "jats/kitchen_sink.xml")))

	out, _, err := execute(t, "parse", "--format", "json", "--gold=false", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"pmcid": "1234567"`)
	assert.Contains(t, out, `"ingestion_source": "LOCAL"`)
	assert.Contains(t, out, `"source_file_path": "`+path+`"`)
}

func TestParse_YAMLGold(t *testing.T) {
	path := writeFile(t, "PMC1.xml", string(testutil.Fixture(t, "jats/kitchen_sink.xml")))

	out, _, err := execute(t, "parse", "--format", "yaml", "--gold", path)
	parseGold = false
	require.NoError(t, err)
	assert.Contains(t, out, "authors_display: Jane Smith; John Doe; Editor\n")
	assert.Contains(t, out, "is_commercial_safe: false\n")
	assert.Contains(t, out, "pub_year: 2024\n")
	assert.NotContains(t, out, `"authors_display"`)
}

func TestParse_Errors(t *testing.T) {
	malformed := writeFile(t, "bad.xml", "<article><front></article>")
	absent := writeFile(t, "absent.xml", "<collection/>")

	_, _, err := execute(t, "parse", "--format", "json", malformed)
	assert.Error(t, err)

	_, _, err = execute(t, "parse", "--format", "toml", absent)
	assert.Error(t, err)

	out, errOut, err := execute(t, "parse", "--format", "json", absent)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "No article element found")

	_, _, err = execute(t, "parse", "--format", "json", filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	path := writeFile(t, "a.xml", `<article><front><article-meta/></front></article>`)

	out, _, err := execute(t, "validate", "-f", path)
	file = ""
	require.NoError(t, err)
	assert.Contains(t, out, "Article found! (none)")
	assert.Contains(t, out, "The article is invalid!")
	assert.Contains(t, out, "pmcid: ")
	assert.Contains(t, out, "title: ")

	_, _, err = execute(t, "validate")
	assert.EqualError(t, err, "parameter empty")
}

func TestMux(t *testing.T) {
	srv := httptest.NewServer(newMux(metrics.New()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	blob, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK\n", string(blob))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	blob, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, strings.Contains(string(blob), "go_goroutines"))
}

func TestRun(t *testing.T) {
	article := testutil.Fixture(t, "jats/kitchen_sink.xml")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/pmc-oa-opendata/oa_comm/xml/all/PMC1.xml" {
			http.NotFound(w, r)
			return
		}
		// The downloader fetches ranges and stops on Content-Range.
		http.ServeContent(w, r, "PMC1.xml", time.Time{}, bytes.NewReader(article))
	}))
	defer srv.Close()

	dir := t.TempDir()
	manifest := writeFile(t, "oa_file_list.csv",
		"File Path,Accession ID,Last Updated (UTC),PMID,License,Retracted\n"+
			"oa_comm/xml/all/PMC1.xml,PMC1,2024-01-01 12:00:00,30000001,CC BY,no\n")

	t.Setenv("AWS_S3_FORCE_PATH_STYLE", "true")
	t.Setenv("PMC_ETL_SOURCE_ENDPOINT", srv.URL)
	t.Setenv("PMC_ETL_PIPELINE_MANIFEST_PATH", manifest)
	t.Setenv("PMC_ETL_STATE_PATH", filepath.Join(dir, "state.json"))
	t.Setenv("PMC_ETL_SINK_URI", "jsonl://"+dir)

	out, _, err := execute(t, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "source=S3 fetched=1 fetch_failed=0 parsed=1")
	assert.Contains(t, out, "high_water_mark=2024-01-01T12:00:00Z")

	for _, layer := range []string{"bronze", "silver", "gold"} {
		blob, err := os.ReadFile(filepath.Join(dir, "pmc_"+layer+".jsonl"))
		require.NoError(t, err, layer)
		assert.Equal(t, 1, strings.Count(string(blob), "\n"), layer)
	}

	state, err := os.ReadFile(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	assert.Contains(t, string(state), "2024-01-01T12:00:00Z")

	// Nothing changed since.
	out, _, err = execute(t, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "fetched=0")
}

func TestConfig(t *testing.T) {
	t.Setenv("PMC_ETL_SINK_URI", "sqlite:///tmp/pmc.db")

	out, _, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "[sink]")
	assert.Contains(t, out, "sqlite:///tmp/pmc.db")
}
