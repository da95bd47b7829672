// Package store archives finalized mining sessions in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prospect-mining/prospect/internal/session"
)

// Store wraps the archive database.
type Store struct {
	db *sql.DB
}

// New returns a Store over conn.
func New(conn *sql.DB) *Store {
	return &Store{db: conn}
}

// MaterialRow is one material's archived statistics, plus tons sold.
type MaterialRow struct {
	session.MaterialStat
	Sold int `json:"sold,omitempty"`
}

// Archived is a finalized session as stored.
type Archived struct {
	ID             string        `json:"session_id"`
	StartedAt      time.Time     `json:"started_at"`
	EndedAt        time.Time     `json:"ended_at"`
	ActiveDuration time.Duration `json:"active_duration"`
	Ship           string        `json:"ship,omitempty"`
	Capacity       int           `json:"capacity,omitempty"`
	CapacityApprox bool          `json:"capacity_approx,omitempty"`
	Notes          []string      `json:"notes,omitempty"`
	Materials      []MaterialRow `json:"materials"`
	ExcerptSha256  string        `json:"excerpt_sha256,omitempty"`
}

// FromReport converts a finalized report for archival. excerptSha may
// be empty when no excerpt blob was stored.
func FromReport(rep *session.Report, excerptSha string) *Archived {
	a := &Archived{
		ID:             rep.SessionID,
		StartedAt:      rep.StartedAt,
		EndedAt:        rep.EndedAt,
		ActiveDuration: rep.ActiveDuration,
		Ship:           rep.Ship,
		Capacity:       rep.Capacity,
		CapacityApprox: rep.CapacityApprox,
		Notes:          rep.Notes,
		ExcerptSha256:  excerptSha,
	}
	for _, m := range rep.Materials {
		a.Materials = append(a.Materials, MaterialRow{
			MaterialStat: m,
			Sold:         rep.Sold[m.Material],
		})
	}
	return a
}

// Insert archives a. INSERT OR IGNORE keyed by session id makes
// re-archival (restore, re-import) a no-op. Returns whether a row was
// actually inserted.
func (s *Store) Insert(a *Archived) (bool, error) {
	notes, err := json.Marshal(a.Notes)
	if err != nil {
		return false, err
	}
	if a.Notes == nil {
		notes = []byte("[]")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT OR IGNORE INTO sessions
		 (session_id, started_at, ended_at, active_secs, ship, cargo_capacity, capacity_approx, notes_json, excerpt_sha256)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, unix(a.StartedAt), unix(a.EndedAt), a.ActiveDuration.Seconds(),
		a.Ship, a.Capacity, boolInt(a.CapacityApprox), string(notes), a.ExcerptSha256,
	)
	if err != nil {
		return false, fmt.Errorf("insert session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	for _, m := range a.Materials {
		_, err := tx.Exec(
			`INSERT OR IGNORE INTO session_materials
			 (session_id, material, tons, tons_per_hour, avg_pct, best_pct, hits, sold)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, m.Material, m.Tons, m.TonsPerHour, m.AvgPct, m.BestPct, m.Hits, m.Sold,
		)
		if err != nil {
			return false, fmt.Errorf("insert material %s: %w", m.Material, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// InsertSamples archives the prospector readings for a session.
func (s *Store) InsertSamples(sessionID string, samples []session.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, sm := range samples {
		if _, err := tx.Exec(
			`INSERT INTO prospector_samples (session_id, ts, material, pct) VALUES (?, ?, ?, ?)`,
			sessionID, unix(sm.Timestamp), sm.Material, sm.Percentage,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SamplesFor returns the archived prospector readings for a session,
// in insertion order.
func (s *Store) SamplesFor(sessionID string) ([]session.Sample, error) {
	rows, err := s.db.Query(
		`SELECT ts, material, pct FROM prospector_samples WHERE session_id = ? ORDER BY ts ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []session.Sample
	for rows.Next() {
		var sm session.Sample
		var ts float64
		if err := rows.Scan(&ts, &sm.Material, &sm.Percentage); err != nil {
			return nil, err
		}
		sm.Timestamp = fromUnix(ts)
		out = append(out, sm)
	}
	return out, rows.Err()
}

// RecordBlob registers a stored excerpt blob.
func (s *Store) RecordBlob(sha256Hex, storagePath string, byteLen int) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO blobs (sha256, storage_path, byte_len, compression, created_at)
		 VALUES (?, ?, ?, 'zstd', ?)`,
		sha256Hex, storagePath, byteLen, unix(time.Now()),
	)
	return err
}

// Get loads one archived session. Returns sql.ErrNoRows when absent.
func (s *Store) Get(sessionID string) (*Archived, error) {
	row := s.db.QueryRow(
		`SELECT session_id, started_at, ended_at, active_secs, COALESCE(ship, ''),
		        cargo_capacity, capacity_approx, notes_json, COALESCE(excerpt_sha256, '')
		 FROM sessions WHERE session_id = ?`, sessionID)
	return s.scanSession(row)
}

// Last loads the most recently ended session.
func (s *Store) Last() (*Archived, error) {
	row := s.db.QueryRow(
		`SELECT session_id, started_at, ended_at, active_secs, COALESCE(ship, ''),
		        cargo_capacity, capacity_approx, notes_json, COALESCE(excerpt_sha256, '')
		 FROM sessions ORDER BY ended_at DESC LIMIT 1`)
	return s.scanSession(row)
}

// List returns up to limit sessions, newest first, without materials.
func (s *Store) List(limit int) ([]Archived, error) {
	rows, err := s.db.Query(
		`SELECT session_id, started_at, ended_at, active_secs, COALESCE(ship, ''),
		        cargo_capacity, capacity_approx, notes_json, COALESCE(excerpt_sha256, '')
		 FROM sessions ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Archived
	for rows.Next() {
		a, err := scanArchived(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// All returns every archived session with materials, oldest first.
// Used by the backup publisher.
func (s *Store) All() ([]Archived, error) {
	rows, err := s.db.Query(
		`SELECT session_id, started_at, ended_at, active_secs, COALESCE(ship, ''),
		        cargo_capacity, capacity_approx, notes_json, COALESCE(excerpt_sha256, '')
		 FROM sessions ORDER BY ended_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Archived
	for rows.Next() {
		a, err := scanArchived(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadMaterials(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) scanSession(row *sql.Row) (*Archived, error) {
	a, err := scanArchived(row.Scan)
	if err != nil {
		return nil, err
	}
	if err := s.loadMaterials(a); err != nil {
		return nil, err
	}
	return a, nil
}

func scanArchived(scan func(...any) error) (*Archived, error) {
	var a Archived
	var startedAt, endedAt, activeSecs float64
	var approx int
	var notesJSON string
	if err := scan(&a.ID, &startedAt, &endedAt, &activeSecs, &a.Ship,
		&a.Capacity, &approx, &notesJSON, &a.ExcerptSha256); err != nil {
		return nil, err
	}
	a.StartedAt = fromUnix(startedAt)
	a.EndedAt = fromUnix(endedAt)
	a.ActiveDuration = time.Duration(activeSecs * float64(time.Second))
	a.CapacityApprox = approx != 0
	if err := json.Unmarshal([]byte(notesJSON), &a.Notes); err != nil {
		a.Notes = nil
	}
	return &a, nil
}

func (s *Store) loadMaterials(a *Archived) error {
	rows, err := s.db.Query(
		`SELECT material, tons, tons_per_hour, avg_pct, best_pct, hits, sold
		 FROM session_materials WHERE session_id = ? ORDER BY tons DESC, material ASC`, a.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var m MaterialRow
		if err := rows.Scan(&m.Material, &m.Tons, &m.TonsPerHour, &m.AvgPct, &m.BestPct, &m.Hits, &m.Sold); err != nil {
			return err
		}
		a.Materials = append(a.Materials, m)
	}
	return rows.Err()
}

func unix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnix(sec float64) time.Time {
	return time.Unix(0, int64(sec*1e9)).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
