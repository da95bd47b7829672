package integration

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prospect-mining/prospect/internal/announce"
	"github.com/prospect-mining/prospect/internal/backup"
	"github.com/prospect-mining/prospect/internal/blob"
	"github.com/prospect-mining/prospect/internal/control"
	"github.com/prospect-mining/prospect/internal/db"
	"github.com/prospect-mining/prospect/internal/monitor"
	"github.com/prospect-mining/prospect/internal/session"
	"github.com/prospect-mining/prospect/internal/store"
	"github.com/prospect-mining/prospect/testdata/integration/test_utils"
)

type daemonFixture struct {
	m          *monitor.Monitor
	conn       *sql.DB
	st         *store.Store
	journalDir string
	controlDir string
	blobDir    string
	journal    string
}

func newDaemon(t *testing.T) *daemonFixture {
	t.Helper()
	root := t.TempDir()
	journalDir := filepath.Join(root, "journal")
	require.NoError(t, os.MkdirAll(journalDir, 0o755))

	f := &daemonFixture{
		journalDir: journalDir,
		controlDir: filepath.Join(root, "control"),
		blobDir:    filepath.Join(root, "blobs"),
		journal:    filepath.Join(journalDir, "Journal.2026-06-01T090000.log"),
	}
	require.NoError(t, os.WriteFile(f.journal,
		[]byte(`{"timestamp":"2026-06-01T09:00:00Z","event":"Fileheader"}`+"\n"), 0o644))
	f.writeStatus(t, "Python", 192)
	f.writeCargo(t, nil)

	conn, err := db.Open(filepath.Join(root, "prospect.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	f.conn = conn
	f.st = store.New(conn)

	m, err := monitor.New(
		monitor.Config{
			JournalDir:       journalDir,
			CargoPath:        filepath.Join(journalDir, "Cargo.json"),
			StatusPath:       filepath.Join(journalDir, "Status.json"),
			ControlDir:       f.controlDir,
			BlobDir:          f.blobDir,
			PollInterval:     10 * time.Millisecond,
			SidePollInterval: 10 * time.Millisecond,
		},
		session.Config{TrackedMaterials: []string{"Painite", "Platinum"}, AnnounceThresholdPct: 20},
		announce.NewFileAnnouncer(f.controlDir),
		conn, f.st,
	)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	f.m = m
	return f
}

func (f *daemonFixture) writeStatus(t *testing.T, ship string, capacity int) {
	t.Helper()
	b, _ := json.Marshal(map[string]any{"Ship": ship, "Cargo": 0, "CargoCapacity": capacity})
	require.NoError(t, os.WriteFile(filepath.Join(f.journalDir, "Status.json"), b, 0o644))
}

func (f *daemonFixture) writeCargo(t *testing.T, counts map[string]int) {
	t.Helper()
	type item struct {
		Name  string `json:"Name"`
		Count int    `json:"Count"`
	}
	inv := []item{}
	for n, c := range counts {
		inv = append(inv, item{Name: n, Count: c})
	}
	b, _ := json.Marshal(map[string]any{"Inventory": inv})
	require.NoError(t, os.WriteFile(filepath.Join(f.journalDir, "Cargo.json"), b, 0o644))
}

func (f *daemonFixture) appendJournal(t *testing.T, lines ...string) {
	t.Helper()
	fh, err := os.OpenFile(f.journal, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer fh.Close()
	for _, l := range lines {
		_, err := fh.WriteString(l + "\n")
		require.NoError(t, err)
	}
}

// rotate starts a new journal file; subsequent appends land there. The
// monitor must drain the remainder of the old file before following.
func (f *daemonFixture) rotate(t *testing.T, name string) {
	t.Helper()
	f.journal = filepath.Join(f.journalDir, name)
	require.NoError(t, os.WriteFile(f.journal,
		[]byte(`{"timestamp":"2026-06-01T10:00:00Z","event":"Fileheader"}`+"\n"), 0o644))
}

func (f *daemonFixture) command(t *testing.T, cmd string) {
	t.Helper()
	require.NoError(t, control.Write(f.controlDir, "session", cmd))
}

func (f *daemonFixture) controlValue(t *testing.T, name string) string {
	t.Helper()
	v, ok, err := control.Read(f.controlDir, name)
	require.NoError(t, err)
	require.True(t, ok, "control file %s missing", name)
	return v
}

// A session that spans a journal rotation loses no events, and the
// resulting archive survives a backup round trip with its excerpt blob.
func TestSessionAcrossRotationThenBackup(t *testing.T) {
	f := newDaemon(t)
	start := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)

	f.command(t, "start")
	f.m.Cycle(start)
	require.Equal(t, "active", f.controlValue(t, "state"))

	f.appendJournal(t,
		`{"timestamp":"2026-06-01T09:31:00Z","event":"ProspectedAsteroid","Materials":[{"Name":"Platinum","Proportion":41.5}]}`,
		`{"timestamp":"2026-06-01T09:32:00Z","event":"MiningRefined","Type":"Platinum"}`,
	)
	f.m.Cycle(start.Add(3 * time.Minute))
	require.Contains(t, f.controlValue(t, "announce"), "Platinum")

	// Write into the old file after the new one exists; the old tail
	// must still be consumed.
	f.appendJournal(t, `{"timestamp":"2026-06-01T09:58:00Z","event":"MiningRefined","Type":"Platinum"}`)
	f.rotate(t, "Journal.2026-06-01T100000.log")
	f.appendJournal(t,
		`{"timestamp":"2026-06-01T10:01:00Z","event":"MiningRefined","Type":"Platinum"}`,
		`{"timestamp":"2026-06-01T10:02:00Z","event":"MiningRefined","Type":"Painite"}`,
	)
	f.m.Cycle(start.Add(35 * time.Minute))

	f.writeCargo(t, map[string]int{"Platinum": 3, "Painite": 1})
	f.command(t, "stop")
	f.m.Cycle(start.Add(time.Hour))
	require.Equal(t, "idle", f.controlValue(t, "state"))

	a, err := f.st.Last()
	require.NoError(t, err)
	require.Equal(t, time.Hour, a.ActiveDuration)
	tons := map[string]float64{}
	for _, m := range a.Materials {
		tons[m.Material] = m.Tons
	}
	require.Equal(t, 3.0, tons["platinum"])
	require.Equal(t, 1.0, tons["painite"])
	require.NotEmpty(t, a.ExcerptSha256)

	// The excerpt blob holds the raw lines from both files.
	excerpt, err := blob.Load(f.blobDir, a.ExcerptSha256)
	require.NoError(t, err)
	require.Contains(t, string(excerpt), "09:58:00Z")
	require.Contains(t, string(excerpt), "10:01:00Z")

	// Round-trip through a backup vault onto a fresh node.
	bs := backup.NewFolderStore(t.TempDir())
	pub, err := backup.Publish(f.conn, f.st, f.blobDir, bs, "default", "game-pc", nil, false)
	require.NoError(t, err)
	require.Equal(t, 1, pub.SessionsPublished)
	require.Equal(t, 1, pub.BlobsPublished)

	other := test_utils.NewNode(t, "default", "laptop", nil)
	res := other.Restore(t, bs)
	require.Equal(t, 1, res.SessionsRestored)
	require.Equal(t, 1, res.BlobsRestored)

	restored, err := other.Store.Get(a.ID)
	require.NoError(t, err)
	require.Equal(t, a.Materials, restored.Materials)

	fromVault, err := blob.Load(other.BlobDir, a.ExcerptSha256)
	require.NoError(t, err)
	require.Equal(t, excerpt, fromVault)
}

// Cancel discards the running session without touching the archive.
func TestCancelLeavesNoArchive(t *testing.T) {
	f := newDaemon(t)
	now := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)

	f.command(t, "start")
	f.m.Cycle(now)
	f.appendJournal(t, `{"timestamp":"2026-06-01T09:31:00Z","event":"MiningRefined","Type":"Painite"}`)
	f.m.Cycle(now.Add(time.Minute))

	f.command(t, "cancel")
	f.m.Cycle(now.Add(2 * time.Minute))
	require.Equal(t, "idle", f.controlValue(t, "state"))

	list, err := f.st.List(10)
	require.NoError(t, err)
	require.Empty(t, list)
}
