package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "run-1/planet-weights/step-3.html", Key("run-1", "Planet Weights", 3, "html"))
	assert.Equal(t, "abc/vue-89-is-prime/step-0.png", Key("abc", "vue / 89 is prime", 0, ".png"))
	assert.Equal(t, "unnamed/unnamed/step-1.txt", Key("", "  ", 1, "txt"))
}

func TestS3StoreRoundTrip(t *testing.T) {
	store := TestS3Store(t, "artifacts")
	ctx := context.Background()

	loc, err := store.Put(ctx, "run/scn/step-1.html", []byte("<html></html>"), "text/html")
	require.NoError(t, err)
	assert.Equal(t, "s3://artifacts/run/scn/step-1.html", loc)

	got, err := store.Get(ctx, "run/scn/step-1.html")
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(got))

	_, err = store.Get(ctx, "run/scn/missing.html")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestS3StorePrefixAndPublicURL(t *testing.T) {
	base := TestS3Store(t, "bucket")
	store := NewFromS3Client(base.s3Client, "bucket", "https://cdn.example.test/")
	store.prefix = "ci"

	loc, err := store.Put(context.Background(), "/k.txt", []byte("x"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.test/ci/k.txt", loc)
	got, err := base.Get(context.Background(), "ci/k.txt")
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestDirStore(t *testing.T) {
	root := t.TempDir()
	store, err := NewDirStore(filepath.Join(root, "out"))
	require.NoError(t, err)
	ctx := context.Background()

	loc, err := store.Put(ctx, "run/scn/step-2.html", []byte("page"), "text/html")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "out", "run", "scn", "step-2.html"), loc)
	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "page", string(data))

	_, err = store.Put(ctx, "../escape.txt", []byte("x"), "text/plain")
	assert.Error(t, err)
	_, err = store.Get(ctx, "run/none.html")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
