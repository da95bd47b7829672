// Package backfill imports historical journal files into the session
// archive.
package backfill

import (
	"bufio"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/prospect-mining/prospect/internal/journal"
	"github.com/prospect-mining/prospect/internal/session"
	"github.com/prospect-mining/prospect/internal/store"
)

const maxLines = 500_000

// DedupHash identifies a source file by path and content digest, so
// re-importing the same file is a no-op while a renamed copy with the
// same content still dedupes on content alone via RecordOrSkip.
func DedupHash(contentSha string) string {
	h := sha256.Sum256([]byte("journal\x00" + contentSha))
	return hex.EncodeToString(h[:])
}

// RecordOrSkip inserts hash into import_dedup. True means the file is
// new and should be replayed.
func RecordOrSkip(conn *sql.DB, hash string) (bool, error) {
	res, err := conn.Exec(`INSERT OR IGNORE INTO import_dedup (dedup_hash) VALUES (?)`, hash)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Result summarizes one import.
type Result struct {
	SessionID string
	Events    int
	Skipped   int
	Imported  bool // false when the file was already imported or held no mining activity
}

// Run replays one historical journal file through a fresh session and
// archives the outcome. Event timestamps, not wall clock, drive session
// duration. Files without mining activity are recorded in dedup but
// produce no archived session.
func Run(conn *sql.DB, st *store.Store, cfg session.Config, sourceFile string) (*Result, error) {
	path, err := filepath.Abs(sourceFile)
	if err != nil {
		path = sourceFile
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(content)
	hash := DedupHash(hex.EncodeToString(sum[:]))
	fresh, err := RecordOrSkip(conn, hash)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return &Result{Imported: false}, nil
	}

	events, skipped, err := parseAll(path)
	if err != nil {
		return nil, err
	}
	res := &Result{Skipped: skipped}
	if len(events) == 0 {
		return res, nil
	}

	// No announcer and no capacity lookup: historical files are silent
	// and the side channels describe the present ship, not this replay.
	sess := session.New(cfg, nil, nil)
	if err := sess.Start(nil, events[0].Timestamp); err != nil {
		return nil, err
	}
	last := events[0].Timestamp
	for _, ev := range events {
		if ev.Timestamp.After(last) {
			last = ev.Timestamp
		}
		if ev.Kind == journal.KindShipSwap && ev.Capacity > 0 {
			sess.SetShip(ev.Ship, ev.Capacity)
		}
		sess.Apply(ev)
		res.Events++
	}
	rep, err := sess.Stop(nil, last)
	if err != nil {
		return nil, err
	}
	if len(rep.Materials) == 0 {
		return res, nil
	}

	// Historical files carry no cargo snapshots, so snapshot
	// reconciliation is meaningless here.
	rep.Notes = []string{fmt.Sprintf("imported from %s; no cargo snapshots", filepath.Base(path))}
	rep.Delta.Gained = nil
	rep.Delta.Removed = nil

	a := store.FromReport(rep, "")
	if _, err := st.Insert(a); err != nil {
		return nil, err
	}
	if err := st.InsertSamples(rep.SessionID, sess.Samples()); err != nil {
		return nil, err
	}
	res.SessionID = rep.SessionID
	res.Imported = true
	return res, nil
}

func parseAll(path string) ([]journal.Event, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var events []journal.Event
	var skipped, lines int
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines++
		if lines > maxLines {
			break
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := journal.ParseLine(line)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, 0, err
	}
	// Journals are written in order; sorting defends against
	// hand-concatenated files.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, skipped, nil
}
