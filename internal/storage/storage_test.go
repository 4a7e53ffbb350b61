package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"diagram_engine/internal/assembler"
	"diagram_engine/internal/region"
)

func newRedis(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rs, err := NewRedisStorage(context.Background(), redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })
	return rs, mr
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	rs, err := Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	require.NoError(t, rs.Ping(context.Background()))
	require.NoError(t, rs.Close())

	_, err = Connect(context.Background(), "")
	assert.Error(t, err)
	_, err = Connect(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestRedisAssemblyStore(t *testing.T) {
	ctx := context.Background()
	rs, mr := newRedis(t)
	store := rs.Assemblies(time.Minute)

	_, ok, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := &assembler.PendingAssembly{Token: "t1", SessionID: "s1", Buffer: `<mxCell id="a"`, Round: 2, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Save(ctx, want))
	assert.Equal(t, time.Minute, mr.TTL(assemblyPrefix+"t1"))

	got, ok, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.Buffer, got.Buffer)
	assert.Equal(t, want.Round, got.Round)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

	mr.FastForward(2 * time.Minute)
	_, ok, err = store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, want))
	require.NoError(t, store.Delete(ctx, "t1"))
	assert.False(t, mr.Exists(assemblyPrefix+"t1"))
}

func TestRedisAssemblyStore_DrivesAssembler(t *testing.T) {
	ctx := context.Background()
	rs, _ := newRedis(t)
	a := assembler.New(rs.Assemblies(time.Minute), assembler.Config{})

	step, err := a.Start(ctx, "s1", "", `<mxCell id="a" vertex="1"`)
	require.NoError(t, err)
	require.Equal(t, assembler.StateAccumulating, step.State)

	step, err = a.Continue(ctx, "s1", step.Token, ` parent="1"/>`)
	require.NoError(t, err)
	assert.Equal(t, assembler.StateComplete, step.State)
	assert.Equal(t, `<mxCell id="a" vertex="1" parent="1"/>`, step.Text)
}

func TestRedisRegionStore(t *testing.T) {
	ctx := context.Background()
	rs, mr := newRedis(t)
	store := rs.Regions(10 * time.Minute)

	key, err := store.Put(ctx, "", map[string]string{"logo": "data:image/png;base64,AA"})
	require.NoError(t, err)
	require.NotEmpty(t, key)

	_, err = store.Put(ctx, key, map[string]string{"logo": "other"})
	assert.ErrorIs(t, err, region.ErrKeyExists)

	// reads neither consume the entry nor extend it
	mr.FastForward(5 * time.Minute)
	for i := 0; i < 2; i++ {
		got, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "data:image/png;base64,AA", got["logo"])
	}
	ttl, err := store.TTL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, ttl)

	mr.FastForward(5 * time.Minute)
	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	// an expired key can be reused
	_, err = store.Put(ctx, key, map[string]string{"logo": "fresh"})
	assert.NoError(t, err)
}

func TestRedisRegionStore_FeedsResolver(t *testing.T) {
	ctx := context.Background()
	rs, _ := newRedis(t)
	store := rs.Regions(time.Minute)
	_, err := store.Put(ctx, "shot", map[string]string{"r": "a;b"})
	require.NoError(t, err)

	res := region.NewResolver(store).ResolveText(ctx, `<mxCell id="x" style="image=data:cache/shot/r;" vertex="1" parent="1"/>`)
	assert.Equal(t, 1, res.Resolved)
	assert.Contains(t, res.Text, `style="image=a%3Bb;"`)
}

func TestRedisDocumentStore(t *testing.T) {
	ctx := context.Background()
	rs, mr := newRedis(t)
	store := rs.Documents(time.Hour)

	_, ok, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "s1", "<mxGraphModel/>"))
	mr.FastForward(45 * time.Minute)

	doc, ok, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "<mxGraphModel/>", doc)
	assert.Equal(t, time.Hour, mr.TTL(documentPrefix+"s1"))

	assert.Error(t, store.Save(ctx, "", "x"))
}

func TestMemoryDocumentStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, "s1", "doc-1"))
	require.NoError(t, store.Save(ctx, "s1", "doc-2"))
	doc, ok, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "doc-2", doc)

	now = now.Add(2 * time.Minute)
	_, ok, err = store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "s2", "x"))
	require.NoError(t, store.Delete(ctx, "s2"))
	_, ok, _ = store.Load(ctx, "s2")
	assert.False(t, ok)
}

func TestFileDocumentStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "docs")
	store := NewFileDocumentStore(dir, 2)

	_, ok, err := store.Load(ctx, "user/1")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, d := range []string{"rev-1", "rev-2", "rev-3"} {
		require.NoError(t, store.Save(ctx, "user/1", d))
	}

	doc, ok, err := store.Load(ctx, "user/1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "rev-3", doc)

	history, err := store.History("user/1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "rev-2", history[0].Document)

	_, err = os.Stat(filepath.Join(dir, "user_1.json"))
	assert.NoError(t, err)

	stats, err := store.Stats("user/1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Revisions)
	assert.Equal(t, len("rev-3"), stats.LatestBytes)
	assert.Positive(t, stats.FileSizeBytes)
}

func TestFileDocumentStore_ConcurrentSavesKeepEveryRevision(t *testing.T) {
	ctx := context.Background()
	store := NewFileDocumentStore(t.TempDir(), 100)

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			return store.Save(ctx, "s1", fmt.Sprintf("rev-%d", i))
		})
	}
	require.NoError(t, g.Wait())

	history, err := store.History("s1")
	require.NoError(t, err)
	assert.Len(t, history, 20)
}
