package export

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prospect-mining/prospect/internal/blob"
	"github.com/prospect-mining/prospect/internal/db"
	"github.com/prospect-mining/prospect/internal/session"
	"github.com/prospect-mining/prospect/internal/store"
)

func archiveOne(t *testing.T) (*store.Store, string, string) {
	t.Helper()
	root := t.TempDir()
	conn, err := db.Open(filepath.Join(root, "prospect.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	st := store.New(conn)
	blobDir := filepath.Join(root, "blobs")

	sha, path, n, err := blob.Put(blobDir, []byte(`{"event":"MiningRefined","Type":"Painite"}`+"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if err := st.RecordBlob(sha, path, n); err != nil {
		t.Fatal(err)
	}

	ended := time.Date(2026, 6, 1, 11, 0, 0, 0, time.UTC)
	var row store.MaterialRow
	row.Material = "painite"
	row.Tons = 12
	row.TonsPerHour = 12
	row.BestPct = 41.5
	row.Hits = 12
	row.Sold = 4
	a := &store.Archived{
		ID:             "exp-1",
		StartedAt:      ended.Add(-time.Hour),
		EndedAt:        ended,
		ActiveDuration: time.Hour,
		Ship:           "Python",
		Capacity:       192,
		Notes:          []string{"painite: hold shows 11t, events account for 12t"},
		Materials:      []store.MaterialRow{row},
		ExcerptSha256:  sha,
	}
	if _, err := st.Insert(a); err != nil {
		t.Fatal(err)
	}
	if err := st.InsertSamples("exp-1", []session.Sample{
		{Material: "painite", Percentage: 41.5, Timestamp: ended.Add(-30 * time.Minute)},
	}); err != nil {
		t.Fatal(err)
	}
	return st, blobDir, "exp-1"
}

func TestLoadAndMarkdown(t *testing.T) {
	st, blobDir, id := archiveOne(t)

	exp, err := Load(st, blobDir, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(exp.Excerpt) == 0 {
		t.Fatal("excerpt blob not loaded")
	}

	md := Markdown(exp)
	for _, want := range []string{
		"# Mining Session exp-1",
		"Python, 192t hold",
		"painite: 12.0t",
		"4t sold",
		"hold shows 11t",
		"## Prospector Readings",
		"41.5%",
		"## Journal Excerpt",
		"MiningRefined",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestLoadMissingExcerptBlob(t *testing.T) {
	st, _, id := archiveOne(t)

	// Point at a blob dir that has nothing in it.
	exp, err := Load(st, t.TempDir(), id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(exp.Excerpt) != 0 {
		t.Error("excerpt should be empty when the blob is gone")
	}
	if md := Markdown(exp); strings.Contains(md, "## Journal Excerpt") {
		t.Error("markdown should omit excerpt section")
	}
}

func TestMarkdownApproxCapacity(t *testing.T) {
	a := &store.Archived{
		ID: "exp-2", Ship: "Type-9", Capacity: 512, CapacityApprox: true,
		StartedAt: time.Now().Add(-time.Hour), EndedAt: time.Now(),
	}
	md := Markdown(&SessionExport{Archived: a})
	if !strings.Contains(md, "capacity approximate") {
		t.Error("approximate capacity not flagged")
	}
	if !strings.Contains(md, "No tracked materials collected.") {
		t.Error("empty material list not stated")
	}
}
