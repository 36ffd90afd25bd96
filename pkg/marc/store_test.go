package marc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"

	"github.com/Sternrassler/htrc-client/internal/testutil"
	"github.com/Sternrassler/htrc-client/pkg/pagination"
)

var _ pagination.Source[*Record] = (*RecordIterator)(nil)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "marc.db")
	store, err := Create(dbPath)
	require.NoError(t, err)
	return store, func() { store.Close() }
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFoundLocal))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStore_PutGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "mdp.1", testutil.MARCXML("mdp.1", "Whaling")))
	require.NoError(t, store.Put(ctx, "mdp.1", testutil.MARCXML("mdp.1", "Railroads")))

	r, err := store.Get(ctx, "mdp.1")
	require.NoError(t, err)
	assert.Equal(t, "mdp.1", r.ID())
	assert.Equal(t, []string{"Railroads"}, r.Subjects()[0].Subfield("a"))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Get(ctx, "nope")
	assert.True(t, errors.Is(err, ErrRecordNotFound))

	assert.Error(t, store.Put(ctx, " ", "<record/>"))
}

func TestStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "marc.db")
	store, err := Create(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), "uc1.b1", testutil.MARCXML("uc1.b1", "Whaling")))
	require.NoError(t, store.Close())

	reopened, err := Open(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, dbPath, reopened.Path())
}

func TestStore_Records(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	for _, id := range []string{"c.3", "a.1", "b.2"} {
		require.NoError(t, store.Put(ctx, id, testutil.MARCXML(id, "Subject "+id)))
	}

	it, err := store.Records(ctx)
	require.NoError(t, err)
	defer it.Close()

	records, err := pagination.Collect[*Record](ctx, it)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "a.1", records[0].ID())
	assert.Equal(t, "b.2", records[1].ID())
	assert.Equal(t, "c.3", records[2].ID())

	_, err = it.Next(ctx)
	assert.Equal(t, iterator.Done, err)
}

func TestStore_RecordsCorrupt(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "bad.1", "not xml at all"))

	it, err := store.Records(ctx)
	require.NoError(t, err)
	defer it.Close()

	_, err = it.Next(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.1")
}

func TestStore_ImportZip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	bundle := testutil.ZipBytes(map[string][]byte{
		"mdp.1.xml":  []byte(testutil.MARCXML("mdp.1", "Whaling")),
		"uc1.2.xml":  []byte(testutil.MARCXML("uc1.2", "Railroads")),
		"README.txt": []byte("not a record"),
		"broken.xml": []byte("<collection></collection>"),
	})

	n, err := store.ImportZip(ctx, bundle)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	r, err := store.Get(ctx, "uc1.2")
	require.NoError(t, err)
	assert.True(t, NewMatcher("railroad").Match(r))

	_, err = store.ImportZip(ctx, []byte("garbage"))
	assert.Error(t, err)
}
