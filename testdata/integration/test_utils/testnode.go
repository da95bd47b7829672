// Package test_utils provides fixtures for multi-node backup
// integration tests.
package test_utils

import (
	"crypto/rand"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/prospect-mining/prospect/internal/backup"
	"github.com/prospect-mining/prospect/internal/db"
	"github.com/prospect-mining/prospect/internal/session"
	"github.com/prospect-mining/prospect/internal/store"
)

// Node is one simulated machine: its own archive database and blob
// directory, sharing a vault in a common backup store.
type Node struct {
	Name    string
	Vault   string
	Conn    *sql.DB
	Store   *store.Store
	BlobDir string
	Key     []byte
}

// NewNode builds a node with a fresh archive.
func NewNode(t *testing.T, vault, name string, key []byte) *Node {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(filepath.Join(dir, name+".db"))
	if err != nil {
		t.Fatalf("db.Open(%s): %v", name, err)
	}
	t.Cleanup(func() { conn.Close() })
	return &Node{
		Name:    name,
		Vault:   vault,
		Conn:    conn,
		Store:   store.New(conn),
		BlobDir: filepath.Join(dir, "blobs"),
		Key:     key,
	}
}

// NewKey returns a random master key.
func NewKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, backup.KeySize)
	if _, err := rand.Read(k); err != nil {
		t.Fatal(err)
	}
	return k
}

// ArchiveSession inserts a minimal finished session on the node.
func (n *Node) ArchiveSession(t *testing.T, id string, endedAt time.Time, tons float64) {
	t.Helper()
	var row store.MaterialRow
	row.Material = "painite"
	row.Tons = tons
	row.Hits = int(tons)
	a := &store.Archived{
		ID:             id,
		StartedAt:      endedAt.Add(-time.Hour),
		EndedAt:        endedAt,
		ActiveDuration: time.Hour,
		Ship:           "Python",
		Capacity:       192,
		Materials:      []store.MaterialRow{row},
	}
	if _, err := n.Store.Insert(a); err != nil {
		t.Fatalf("Insert(%s): %v", id, err)
	}
	if err := n.Store.InsertSamples(id, []session.Sample{
		{Material: "painite", Percentage: 30, Timestamp: endedAt.Add(-30 * time.Minute)},
	}); err != nil {
		t.Fatalf("InsertSamples(%s): %v", id, err)
	}
}

// Publish pushes the node's unpublished sessions into bs.
func (n *Node) Publish(t *testing.T, bs backup.Store) *backup.PublishResult {
	t.Helper()
	res, err := backup.Publish(n.Conn, n.Store, n.BlobDir, bs, n.Vault, n.Name, n.Key, len(n.Key) > 0)
	if err != nil {
		t.Fatalf("Publish(%s): %v", n.Name, err)
	}
	return res
}

// Restore pulls everything in the vault into the node's archive.
func (n *Node) Restore(t *testing.T, bs backup.Store) *backup.RestoreResult {
	t.Helper()
	res, err := backup.Restore(n.Conn, n.Store, n.BlobDir, bs, n.Vault, n.Key)
	if err != nil {
		t.Fatalf("Restore(%s): %v", n.Name, err)
	}
	return res
}

// SessionIDs lists the node's archived session ids, newest first.
func (n *Node) SessionIDs(t *testing.T) []string {
	t.Helper()
	list, err := n.Store.List(100)
	if err != nil {
		t.Fatalf("List(%s): %v", n.Name, err)
	}
	var ids []string
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	return ids
}
