package backup

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospect-mining/prospect/internal/blob"
	"github.com/prospect-mining/prospect/internal/db"
	"github.com/prospect-mining/prospect/internal/session"
	"github.com/prospect-mining/prospect/internal/store"
)

func openArchive(t *testing.T) (*store.Store, *sql.DB, string) {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(filepath.Join(dir, "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return store.New(conn), conn, filepath.Join(dir, "blobs")
}

func TestPublishRestoreRoundtrip(t *testing.T) {
	srcStore, srcConn, srcBlobs := openArchive(t)
	master := randKey(t)

	// One archived session with an excerpt blob and samples.
	excerpt := []byte(`{"timestamp":"2026-04-01T10:00:00Z","event":"MiningRefined","Type":"Painite"}` + "\n")
	sha, path, n, err := blob.Put(srcBlobs, excerpt)
	require.NoError(t, err)
	require.NoError(t, srcStore.RecordBlob(sha, path, n))

	var painite store.MaterialRow
	painite.Material = "painite"
	painite.Tons = 6
	painite.Hits = 3
	a := &store.Archived{
		ID:             "sess-pub",
		StartedAt:      time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		EndedAt:        time.Date(2026, 4, 1, 11, 0, 0, 0, time.UTC),
		ActiveDuration: time.Hour,
		Ship:           "Python",
		Capacity:       192,
		Materials:      []store.MaterialRow{painite},
		ExcerptSha256:  sha,
	}
	inserted, err := srcStore.Insert(a)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, srcStore.InsertSamples("sess-pub", []session.Sample{
		{Material: "painite", Percentage: 32.5, Timestamp: a.StartedAt},
	}))

	bs := NewFolderStore(t.TempDir())

	pub, err := Publish(srcConn, srcStore, srcBlobs, bs, "vault-1", "node-1", master, true)
	require.NoError(t, err)
	assert.Equal(t, 1, pub.SegmentsPublished)
	assert.Equal(t, 1, pub.SessionsPublished)
	assert.Equal(t, 1, pub.BlobsPublished)

	// Second publish has nothing new.
	pub2, err := Publish(srcConn, srcStore, srcBlobs, bs, "vault-1", "node-1", master, true)
	require.NoError(t, err)
	assert.Equal(t, 0, pub2.SegmentsPublished)

	// Restore into a fresh archive.
	dstStore, dstConn, dstBlobs := openArchive(t)
	res, err := Restore(dstConn, dstStore, dstBlobs, bs, "vault-1", master)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SegmentsRestored)
	assert.Equal(t, 1, res.SessionsRestored)
	assert.Equal(t, 1, res.BlobsRestored)
	assert.Zero(t, res.Errors)

	got, err := dstStore.Get("sess-pub")
	require.NoError(t, err)
	assert.Equal(t, "Python", got.Ship)
	require.Len(t, got.Materials, 1)
	assert.Equal(t, 6.0, got.Materials[0].Tons)
	assert.Equal(t, sha, got.ExcerptSha256)

	samples, err := dstStore.SamplesFor("sess-pub")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 32.5, samples[0].Percentage)

	content, err := blob.Load(dstBlobs, sha)
	require.NoError(t, err)
	assert.Equal(t, excerpt, content)
}

func TestRestoreIdempotent(t *testing.T) {
	srcStore, srcConn, srcBlobs := openArchive(t)
	master := randKey(t)
	bs := NewFolderStore(t.TempDir())

	_, err := srcStore.Insert(&store.Archived{
		ID:        "sess-x",
		StartedAt: time.Now().Add(-time.Hour),
		EndedAt:   time.Now(),
	})
	require.NoError(t, err)
	_, err = Publish(srcConn, srcStore, srcBlobs, bs, "v", "n", master, true)
	require.NoError(t, err)

	dstStore, dstConn, dstBlobs := openArchive(t)
	first, err := Restore(dstConn, dstStore, dstBlobs, bs, "v", master)
	require.NoError(t, err)
	assert.Equal(t, 1, first.SessionsRestored)

	second, err := Restore(dstConn, dstStore, dstBlobs, bs, "v", master)
	require.NoError(t, err)
	assert.Equal(t, 0, second.SessionsRestored)
	assert.Equal(t, 1, second.SessionsSkipped)
}

func TestRestoreWrongMasterKey(t *testing.T) {
	srcStore, srcConn, srcBlobs := openArchive(t)
	master := randKey(t)
	bs := NewFolderStore(t.TempDir())

	_, err := srcStore.Insert(&store.Archived{
		ID:        "sess-y",
		StartedAt: time.Now().Add(-time.Hour),
		EndedAt:   time.Now(),
	})
	require.NoError(t, err)
	_, err = Publish(srcConn, srcStore, srcBlobs, bs, "vault-a", "n", master, true)
	require.NoError(t, err)

	dstStore, dstConn, dstBlobs := openArchive(t)
	res, err := Restore(dstConn, dstStore, dstBlobs, bs, "vault-a", randKey(t))
	require.NoError(t, err)
	assert.Zero(t, res.SessionsRestored)
	assert.Equal(t, 1, res.SegmentsInvalid, "wrong master key must fail decryption")
}
