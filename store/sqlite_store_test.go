package store

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/kadraj/database"
	"github.com/akinalp/kadraj/pkg"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	migrations, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	require.NoError(t, err)

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), migrations)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := NewSQLiteStore(db.Conn)
	t.Cleanup(st.Close)
	return st
}

// waitSnapshot, kuyruktan bir sonraki snapshot'ı bekler.
// Teslimat asenkrondur — listener goroutine'i kuyruğu sırayla boşaltır.
func waitSnapshot(t *testing.T, ch <-chan []Document) []Document {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestWriteGeneratesIDAndReadsBack(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.Write(ctx, "messages", Document{
		"sender_id": "alice",
		"content":   "merhaba",
		"read":      false,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	docs, err := st.Read(ctx, "messages", Eq("id", id))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID())
	assert.Equal(t, "alice", docs[0].String("sender_id"))
	assert.Equal(t, "merhaba", docs[0].String("content"))
	assert.False(t, docs[0].Bool("read"))
}

func TestWriteUpsertsExistingID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Write(ctx, "typing", Document{"id": "typing_a_b", "from": "a", "to": "b"})
	require.NoError(t, err)

	// Aynı id ile ikinci yazma kaydın üstüne yazar, yeni kayıt açmaz
	id, err := st.Write(ctx, "typing", Document{"id": "typing_a_b", "from": "a", "to": "b", "extra": "x"})
	require.NoError(t, err)
	assert.Equal(t, "typing_a_b", id)

	docs, err := st.Read(ctx, "typing", All())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "x", docs[0].String("extra"))
}

func TestReadFiltersAreCollectionScoped(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Write(ctx, "messages", Document{"sender_id": "alice"})
	require.NoError(t, err)
	_, err = st.Write(ctx, "follows", Document{"follower_id": "alice"})
	require.NoError(t, err)

	docs, err := st.Read(ctx, "messages", All())
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = st.Read(ctx, "messages", Eq("sender_id", "bob"))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestUpdateMergesFields(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.Write(ctx, "messages", Document{"content": "ilk", "read": false})
	require.NoError(t, err)

	require.NoError(t, st.Update(ctx, "messages", id, Document{"read": true}))

	docs, err := st.Read(ctx, "messages", Eq("id", id))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.True(t, docs[0].Bool("read"))
	// Dokunulmayan alanlar korunur
	assert.Equal(t, "ilk", docs[0].String("content"))
}

func TestUpdateMissingDocumentReturnsNotFound(t *testing.T) {
	st := newTestStore(t)

	err := st.Update(context.Background(), "messages", "ghost", Document{"read": true})
	assert.True(t, errors.Is(err, pkg.ErrNotFound))
}

func TestDeleteIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.Write(ctx, "typing", Document{"from": "a"})
	require.NoError(t, err)

	require.NoError(t, st.Delete(ctx, "typing", id))
	require.NoError(t, st.Delete(ctx, "typing", id))

	docs, err := st.Read(ctx, "typing", All())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestListenDeliversInitialSnapshot(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Write(ctx, "messages", Document{"recipient_id": "alice", "content": "bekleyen"})
	require.NoError(t, err)

	ch := make(chan []Document, 8)
	cancel := st.Listen("messages", Eq("recipient_id", "alice"),
		func(docs []Document) { ch <- docs }, nil)
	defer cancel()

	snap := waitSnapshot(t, ch)
	require.Len(t, snap, 1)
	assert.Equal(t, "bekleyen", snap[0].String("content"))
}

func TestListenDeliversFullResultSetOnMutation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ch := make(chan []Document, 8)
	cancel := st.Listen("messages", Eq("recipient_id", "alice"),
		func(docs []Document) { ch <- docs }, nil)
	defer cancel()

	assert.Empty(t, waitSnapshot(t, ch))

	_, err := st.Write(ctx, "messages", Document{"recipient_id": "alice", "content": "bir"})
	require.NoError(t, err)
	assert.Len(t, waitSnapshot(t, ch), 1)

	// Snapshot diff değil, eşleşen kümenin TAMAMIDIR
	_, err = st.Write(ctx, "messages", Document{"recipient_id": "alice", "content": "iki"})
	require.NoError(t, err)
	assert.Len(t, waitSnapshot(t, ch), 2)

	// Filtreye uymayan mutasyon da değerlendirme tetikler — küme değişmez
	_, err = st.Write(ctx, "messages", Document{"recipient_id": "bob", "content": "ilgisiz"})
	require.NoError(t, err)
	assert.Len(t, waitSnapshot(t, ch), 2)
}

func TestListenStopsAfterCancel(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ch := make(chan []Document, 8)
	cancel := st.Listen("messages", All(),
		func(docs []Document) { ch <- docs }, nil)

	assert.Empty(t, waitSnapshot(t, ch))
	cancel()

	_, err := st.Write(ctx, "messages", Document{"content": "iptal sonrası"})
	require.NoError(t, err)

	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot after cancel: %v", snap)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestListenOtherCollectionDoesNotTrigger(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ch := make(chan []Document, 8)
	cancel := st.Listen("messages", All(),
		func(docs []Document) { ch <- docs }, nil)
	defer cancel()

	assert.Empty(t, waitSnapshot(t, ch))

	_, err := st.Write(ctx, "follows", Document{"follower_id": "alice"})
	require.NoError(t, err)

	select {
	case <-ch:
		t.Fatal("mutation in another collection must not trigger listener")
	case <-time.After(100 * time.Millisecond):
	}
}
