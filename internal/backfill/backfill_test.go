package backfill

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prospect-mining/prospect/internal/db"
	"github.com/prospect-mining/prospect/internal/session"
	"github.com/prospect-mining/prospect/internal/store"
)

var testCfg = session.Config{
	TrackedMaterials:     []string{"Painite", "Platinum"},
	AnnounceThresholdPct: 20,
}

const miningJournal = `{"timestamp":"2026-02-01T10:00:00Z","event":"ProspectedAsteroid","Materials":[{"Name":"Painite","Proportion":31.4}]}
{"timestamp":"2026-02-01T10:05:00Z","event":"MiningRefined","Type":"Painite"}
{"timestamp":"2026-02-01T10:12:00Z","event":"MiningRefined","Type":"Painite"}
{"timestamp":"2026-02-01T11:00:00Z","event":"MiningRefined","Type":"Platinum"}
`

func setup(t *testing.T) (*store.Store, string, func(string) (*Result, error)) {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "backfill.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	st := store.New(conn)
	run := func(path string) (*Result, error) {
		return Run(conn, st, testCfg, path)
	}
	return st, t.TempDir(), run
}

func TestRunImportsMiningJournal(t *testing.T) {
	st, dir, run := setup(t)
	path := filepath.Join(dir, "Journal.2026-02-01T100000.log")
	os.WriteFile(path, []byte(miningJournal), 0o644)

	res, err := run(path)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Imported || res.SessionID == "" {
		t.Fatalf("Result = %+v", res)
	}
	if res.Events != 4 {
		t.Errorf("Events = %d, want 4", res.Events)
	}

	a, err := st.Get(res.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	// Duration spans first to last event timestamp.
	if a.ActiveDuration != time.Hour {
		t.Errorf("ActiveDuration = %v, want 1h", a.ActiveDuration)
	}
	tons := map[string]float64{}
	for _, m := range a.Materials {
		tons[m.Material] = m.Tons
	}
	if tons["painite"] != 2 || tons["platinum"] != 1 {
		t.Errorf("tons = %v", tons)
	}
	if len(a.Notes) != 1 {
		t.Errorf("Notes = %v", a.Notes)
	}
}

func TestRunDedupesSameFile(t *testing.T) {
	st, dir, run := setup(t)
	path := filepath.Join(dir, "Journal.dup.log")
	os.WriteFile(path, []byte(miningJournal), 0o644)

	first, err := run(path)
	if err != nil {
		t.Fatalf("Run 1: %v", err)
	}
	second, err := run(path)
	if err != nil {
		t.Fatalf("Run 2: %v", err)
	}
	if !first.Imported || second.Imported {
		t.Errorf("Imported = %v then %v, want true then false", first.Imported, second.Imported)
	}

	list, err := st.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("archived sessions = %d, want 1", len(list))
	}
}

func TestRunSkipsNonMiningFile(t *testing.T) {
	st, dir, run := setup(t)
	path := filepath.Join(dir, "Journal.quiet.log")
	content := `{"timestamp":"2026-02-01T10:00:00Z","event":"Loadout","Ship":"Python","CargoCapacity":192}` + "\n" +
		"not json at all\n"
	os.WriteFile(path, []byte(content), 0o644)

	res, err := run(path)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Imported {
		t.Error("non-mining file reported as imported")
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", res.Skipped)
	}
	list, _ := st.List(10)
	if len(list) != 0 {
		t.Errorf("archived sessions = %d, want 0", len(list))
	}
}

func TestRunMissingFile(t *testing.T) {
	_, dir, run := setup(t)
	if _, err := run(filepath.Join(dir, "absent.log")); err == nil {
		t.Error("Run on absent file succeeded")
	}
}
