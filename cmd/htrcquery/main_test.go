package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/htrc-client/internal/testutil"
	"github.com/Sternrassler/htrc-client/pkg/client"
	"github.com/Sternrassler/htrc-client/pkg/marc"
)

// execute runs htrcquery against mock and returns stdout.
func execute(t *testing.T, mock *testutil.MockSolr, args ...string) (string, error) {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	cfg := fmt.Sprintf("[solr]\nbase_url = %q\nmarc_url = %q\npage_size = 3\nbatch_size = 2\n[log]\nlevel = \"error\"\n",
		mock.SelectURL(), mock.MARCURL())
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	cmd := newRootCmd()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "htrcquery QUERY", cmd.Use)

	for name, short := range map[string]string{"fields": "f", "outfile": "o", "numfound": "n", "ids": "i", "marc": "m"} {
		flag := cmd.Flags().Lookup(name)
		require.NotNil(t, flag, "flag %s should exist", name)
		assert.Equal(t, short, flag.Shorthand)
	}
	assert.Equal(t, "-1", cmd.Flags().Lookup("max").DefValue)
}

func TestRootCmd_RequiresQuery(t *testing.T) {
	mock := testutil.NewMockSolr(nil)
	defer mock.Close()

	_, err := execute(t, mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestRootCmd_ModesAreExclusive(t *testing.T) {
	mock := testutil.NewMockSolr(nil)
	defer mock.Close()

	_, err := execute(t, mock, "-n", "-i", "title:whale")
	require.Error(t, err)
	assert.Equal(t, 0, mock.RequestCount())
}

func TestRootCmd_Results(t *testing.T) {
	mock := testutil.NewMockSolr(testutil.Corpus(2))
	defer mock.Close()

	out, err := execute(t, mock, "title:volume")
	require.NoError(t, err)

	want := `{ "results" : [
{
    "id": "test.000000",
    "title": "Volume 0"
},
{
    "id": "test.000001",
    "title": "Volume 1"
}
]}`
	assert.Equal(t, want, out)
}

func TestRootCmd_ResultsEmpty(t *testing.T) {
	mock := testutil.NewMockSolr(nil)
	defer mock.Close()

	out, err := execute(t, mock, "title:nothing")
	require.NoError(t, err)
	assert.Equal(t, "{ \"results\" : [\n\n]}", out)
}

func TestRootCmd_ResultsAreValidJSON(t *testing.T) {
	mock := testutil.NewMockSolr(testutil.Corpus(7))
	defer mock.Close()

	out, err := execute(t, mock, "-f", "id", "*:*")
	require.NoError(t, err)

	var parsed struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Len(t, parsed.Results, 7)
	for _, req := range mock.Requests() {
		assert.Equal(t, "id", req.Query().Get("fl"))
	}
}

func TestRootCmd_Max(t *testing.T) {
	mock := testutil.NewMockSolr(testutil.Corpus(10))
	defer mock.Close()

	out, err := execute(t, mock, "--ids", "--max", "4", "*:*")
	require.NoError(t, err)
	assert.Equal(t, "test.000000\ntest.000001\ntest.000002\ntest.000003\n", out)
}

func TestRootCmd_NumFound(t *testing.T) {
	mock := testutil.NewMockSolr(testutil.Corpus(42))
	defer mock.Close()

	out, err := execute(t, mock, "-n", "*:*")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)
	assert.Equal(t, 1, mock.RequestCount())
}

func TestRootCmd_IDs(t *testing.T) {
	mock := testutil.NewMockSolr(testutil.Corpus(5))
	defer mock.Close()

	out, err := execute(t, mock, "-i", "*:*")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	assert.Len(t, lines, 5)
	assert.Equal(t, "test.000004", lines[4])
}

func TestRootCmd_Outfile(t *testing.T) {
	mock := testutil.NewMockSolr(testutil.Corpus(3))
	defer mock.Close()

	path := filepath.Join(t.TempDir(), "count.txt")
	out, err := execute(t, mock, "-n", "-o", path, "*:*")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "3\n", string(data))
}

func TestRootCmd_MARC(t *testing.T) {
	mock := testutil.NewMockSolr(testutil.Corpus(5))
	defer mock.Close()

	path := filepath.Join(t.TempDir(), "marc.zip")
	_, err := execute(t, mock, "-m", path, "*:*")
	require.NoError(t, err)

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	assert.Len(t, zr.File, 5)

	var marcRequests []string
	for _, req := range mock.Requests() {
		if req.Path == testutil.MARCPath {
			marcRequests = append(marcRequests, req.Query().Get("volumeIDs"))
		}
	}
	assert.Equal(t, []string{
		"test.000000|test.000001",
		"test.000002|test.000003",
		"test.000004",
	}, marcRequests)
}

func TestRootCmd_MARCDB(t *testing.T) {
	mock := testutil.NewMockSolr(testutil.Corpus(3))
	defer mock.Close()

	path := filepath.Join(t.TempDir(), "marc.db")
	_, err := execute(t, mock, "--marcdb", path, "*:*")
	require.NoError(t, err)

	store, err := marc.Open(path)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRootCmd_RequestError(t *testing.T) {
	mock := testutil.NewMockSolr(nil)
	defer mock.Close()
	mock.SetResponse(testutil.SelectPath, testutil.NewErrorResponse(500, "solr down"))

	_, err := execute(t, mock, "-n", "*:*")
	require.Error(t, err)
	assert.True(t, client.IsRequestError(err))
	assert.Equal(t, 500, client.StatusCode(err))
}
