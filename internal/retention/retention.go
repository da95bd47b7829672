// Package retention prunes old archived sessions and caps excerpt
// blob disk usage.
package retention

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"
)

// PruneSessions deletes sessions that ended more than months ago,
// together with their material rows and prospector samples. Excerpt
// blobs are left to PruneBlobs, which removes any blob no session
// references. Returns the number of sessions deleted.
func PruneSessions(conn *sql.DB, months int) (int64, error) {
	if months <= 0 {
		return 0, nil
	}
	cutoff := float64(time.Now().AddDate(0, -months, 0).UnixNano()) / 1e9

	tx, err := conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM session_materials WHERE session_id IN (SELECT session_id FROM sessions WHERE ended_at < ?)`,
		`DELETE FROM prospector_samples WHERE session_id IN (SELECT session_id FROM sessions WHERE ended_at < ?)`,
	} {
		if _, err := tx.Exec(q, cutoff); err != nil {
			return 0, err
		}
	}
	res, err := tx.Exec(`DELETE FROM sessions WHERE ended_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

// PruneBlobs removes excerpt blobs no surviving session references,
// then deletes oldest-first until total stored bytes fit under capGB
// (0 disables the cap). Referenced blobs are never evicted for the
// cap. Returns the number of blobs removed.
func PruneBlobs(conn *sql.DB, blobDir string, capGB float64) (int64, error) {
	orphans, err := listBlobs(conn, `
		SELECT b.sha256, b.storage_path FROM blobs b
		WHERE b.sha256 NOT IN (
			SELECT excerpt_sha256 FROM sessions WHERE excerpt_sha256 IS NOT NULL AND excerpt_sha256 != ''
		)`)
	if err != nil {
		return 0, err
	}

	var deleted int64
	for _, b := range orphans {
		if err := removeBlob(conn, blobDir, b); err != nil {
			return deleted, err
		}
		deleted++
	}

	if capGB <= 0 {
		return deleted, nil
	}
	capBytes := int64(capGB * 1e9)
	for {
		var total int64
		if err := conn.QueryRow(`SELECT COALESCE(SUM(byte_len), 0) FROM blobs`).Scan(&total); err != nil {
			return deleted, err
		}
		if total <= capBytes {
			return deleted, nil
		}
		var b blobRef
		err := conn.QueryRow(`
			SELECT b.sha256, b.storage_path FROM blobs b
			WHERE b.sha256 NOT IN (
				SELECT excerpt_sha256 FROM sessions WHERE excerpt_sha256 IS NOT NULL AND excerpt_sha256 != ''
			)
			ORDER BY b.created_at ASC LIMIT 1`).Scan(&b.sha256, &b.path)
		if err == sql.ErrNoRows {
			return deleted, nil
		}
		if err != nil {
			return deleted, err
		}
		if err := removeBlob(conn, blobDir, b); err != nil {
			return deleted, err
		}
		deleted++
	}
}

type blobRef struct {
	sha256 string
	path   string
}

func listBlobs(conn *sql.DB, query string) ([]blobRef, error) {
	rows, err := conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []blobRef
	for rows.Next() {
		var b blobRef
		if err := rows.Scan(&b.sha256, &b.path); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func removeBlob(conn *sql.DB, blobDir string, b blobRef) error {
	path := b.path
	if !filepath.IsAbs(path) && blobDir != "" {
		path = filepath.Join(blobDir, path)
	}
	_ = os.Remove(path)
	_, err := conn.Exec(`DELETE FROM blobs WHERE sha256 = ?`, b.sha256)
	return err
}
