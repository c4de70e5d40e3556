package cmd

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alanindra/news-enricher/app/csvio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Execute_allInvalidRows(t *testing.T) {
	dir := t.TempDir()

	input := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(input,
		[]byte("url\nexample.com/no-scheme\nnot a url at all\n"), 0o600))

	output := filepath.Join(dir, "out.csv")

	r := Run{Input: []string{input}, Output: output}
	r.Fetcher.Timeout = time.Second
	r.Fetcher.Workers = 1
	r.Annotator.OpenAI.Timeout = time.Second

	require.NoError(t, r.Execute(nil))

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	// both rows skipped, header-only output
	require.Len(t, records, 1)
	assert.Equal(t, csvio.Header, records[0])
}

func TestRun_Execute_missingInput(t *testing.T) {
	dir := t.TempDir()

	r := Run{
		Input:  []string{filepath.Join(dir, "absent.csv")},
		Output: filepath.Join(dir, "out.csv"),
	}
	r.Fetcher.Workers = 1

	assert.Error(t, r.Execute(nil))
	assert.NoFileExists(t, r.Output)
}
