package cargo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiffSplitsGainedAndRemoved(t *testing.T) {
	begin := Snapshot{"painite": 10, "limpets": 20}
	end := Snapshot{"painite": 16, "limpets": 12, "platinum": 3}

	d := Diff(begin, end)
	if d.Gained["painite"] != 6 {
		t.Errorf("gained painite = %d, want 6", d.Gained["painite"])
	}
	if d.Gained["platinum"] != 3 {
		t.Errorf("gained platinum = %d, want 3", d.Gained["platinum"])
	}
	if d.Removed["limpets"] != 8 {
		t.Errorf("removed limpets = %d, want 8", d.Removed["limpets"])
	}
	if _, ok := d.Removed["painite"]; ok {
		t.Error("painite should not appear in removed")
	}
}

func TestDiffEmpty(t *testing.T) {
	d := Diff(Snapshot{}, Snapshot{})
	if len(d.Gained) != 0 || len(d.Removed) != 0 {
		t.Errorf("empty diff = %+v", d)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := Snapshot{"painite": 5}
	c := s.Clone()
	c["painite"] = 99
	if s["painite"] != 5 {
		t.Error("Clone shares storage with original")
	}
}

func TestReadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Cargo.json")
	content := `{"Inventory":[{"Name":"Painite","Count":6},{"Name":"limpet","Count":40}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	snap, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if snap["painite"] != 6 || snap["limpet"] != 40 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Total() != 46 {
		t.Errorf("total = %d, want 46", snap.Total())
	}
}

func TestReadSnapshotTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Cargo.json")
	if err := os.WriteFile(path, []byte(`{"Inventory":[{"Na`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatal("truncated file: want error")
	}
}

func TestReadStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Status.json")
	content := `{"Ship":"Python","Cargo":46.0,"CargoCapacity":192}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := ReadStatus(path)
	if err != nil {
		t.Fatalf("ReadStatus: %v", err)
	}
	if st.Ship != "Python" || st.CargoCapacity != 192 {
		t.Errorf("status = %+v", st)
	}
}
