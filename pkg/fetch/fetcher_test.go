package fetch

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/htrc-client/internal/testutil"
	"github.com/Sternrassler/htrc-client/pkg/client"
	"github.com/Sternrassler/htrc-client/pkg/dataapi"
	"github.com/Sternrassler/htrc-client/pkg/pagination"
	"github.com/hashicorp/go-multierror"
)

func newDataAPI(t *testing.T, mock *testutil.MockDataAPI) *dataapi.Client {
	t.Helper()
	c, err := dataapi.New(context.Background(), dataapi.Config{BaseURL: mock.URL()}, client.DefaultConfig("htrc-client-test/1.0"))
	if err != nil {
		t.Fatalf("dataapi.New() error = %v", err)
	}
	return c
}

func TestNewFetcher_MissingDir(t *testing.T) {
	_, err := NewFetcher(nil, filepath.Join(t.TempDir(), "absent"), nil)
	if !errors.Is(err, ErrNotFoundLocal) {
		t.Errorf("NewFetcher() error = %v, want ErrNotFoundLocal", err)
	}
}

func TestFetchAll_WritesFiles(t *testing.T) {
	mock := testutil.NewMockDataAPI()
	defer mock.Close()
	mock.SetAggregate("uc1:31822021576848/v1", []byte("zip one"))
	mock.SetAggregate("mdp.39015012345678", []byte("zip two"))

	dir := t.TempDir()
	f, err := NewFetcher(newDataAPI(t, mock), dir, nil)
	if err != nil {
		t.Fatalf("NewFetcher() error = %v", err)
	}

	ids := pagination.FromSlice([]string{"uc1:31822021576848/v1", " ", "mdp.39015012345678\n"})
	summary, err := f.FetchAll(context.Background(), ids)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if summary.Fetched != 2 || summary.Failed != 0 || summary.Errors != nil {
		t.Errorf("summary = %+v", summary)
	}

	for name, want := range map[string]string{
		"uc1+31822021576848=v1.zip": "zip one",
		"mdp.39015012345678.zip":    "zip two",
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("read %s: %v", name, err)
			continue
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", name, data, want)
		}
	}

	if mock.RequestCount() != 2 {
		t.Errorf("requests = %d, want 2 (blank ids are skipped)", mock.RequestCount())
	}
}

func TestFetchAll_ContinuesPastRequestErrors(t *testing.T) {
	mock := testutil.NewMockDataAPI()
	defer mock.Close()
	mock.Fail("bad.1", http.StatusNotFound)
	mock.Fail("bad.2", http.StatusInternalServerError)

	dir := t.TempDir()
	f, err := NewFetcher(newDataAPI(t, mock), dir, nil)
	if err != nil {
		t.Fatalf("NewFetcher() error = %v", err)
	}

	ids := pagination.FromSlice([]string{"ok.1", "bad.1", "ok.2", "bad.2", "ok.3"})
	summary, err := f.FetchAll(context.Background(), ids)
	if err != nil {
		t.Fatalf("FetchAll() aborted: %v", err)
	}

	if summary.Fetched != 3 || summary.Failed != 2 {
		t.Errorf("Fetched = %d, Failed = %d, want 3 and 2", summary.Fetched, summary.Failed)
	}

	var merr *multierror.Error
	if !errors.As(summary.Errors, &merr) {
		t.Fatalf("Errors = %T, want *multierror.Error", summary.Errors)
	}
	if len(merr.Errors) != 2 {
		t.Fatalf("collected %d errors, want 2", len(merr.Errors))
	}
	if !strings.HasPrefix(merr.Errors[0].Error(), "bad.1: ") || client.StatusCode(merr.Errors[0]) != http.StatusNotFound {
		t.Errorf("first error = %v", merr.Errors[0])
	}
	if client.StatusCode(merr.Errors[1]) != http.StatusInternalServerError {
		t.Errorf("second error = %v", merr.Errors[1])
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 3 {
		t.Errorf("wrote %d files, want 3", len(entries))
	}
}

func TestFetchAll_WriteErrorAborts(t *testing.T) {
	mock := testutil.NewMockDataAPI()
	defer mock.Close()

	dir := t.TempDir()
	f, err := NewFetcher(newDataAPI(t, mock), dir, nil)
	if err != nil {
		t.Fatalf("NewFetcher() error = %v", err)
	}

	// A directory in the way of the output file makes the write fail.
	if err := os.Mkdir(f.Path("blocked.1"), 0o755); err != nil {
		t.Fatal(err)
	}

	summary, err := f.FetchAll(context.Background(), pagination.FromSlice([]string{"ok.1", "blocked.1", "ok.2"}))
	if err == nil {
		t.Fatal("expected write error to abort the run")
	}
	if client.IsRequestError(err) {
		t.Errorf("write failure reported as request error: %v", err)
	}
	if summary.Fetched != 1 {
		t.Errorf("Fetched = %d, want 1", summary.Fetched)
	}
	if mock.RequestCount() != 2 {
		t.Errorf("requests = %d, want 2", mock.RequestCount())
	}
}

func TestFetchAll_Cancelled(t *testing.T) {
	api := &stubAggregator{}
	f, err := NewFetcher(api, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFetcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	api.onFetch = func(id string) {
		if id == "b" {
			cancel()
		}
	}

	summary, err := f.FetchAll(ctx, pagination.FromSlice([]string{"a", "b", "c"}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("FetchAll() error = %v, want context.Canceled", err)
	}
	if summary.Fetched != 1 {
		t.Errorf("Fetched = %d, want 1", summary.Fetched)
	}
	if api.calls != 2 {
		t.Errorf("calls = %d, want 2", api.calls)
	}
}

// stubAggregator returns canned data and fails with ctx.Err once cancelled.
type stubAggregator struct {
	calls   int
	onFetch func(id string)
}

func (s *stubAggregator) FetchAggregate(ctx context.Context, id string) ([]byte, error) {
	s.calls++
	if s.onFetch != nil {
		s.onFetch(id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte(id), nil
}
