package backup

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/prospect-mining/prospect/internal/blob"
	"github.com/prospect-mining/prospect/internal/session"
	"github.com/prospect-mining/prospect/internal/store"
)

// RestoreResult summarizes one restore run.
type RestoreResult struct {
	SegmentsRestored  int
	SegmentsInvalid   int
	SessionsRestored  int
	SessionsSkipped   int
	BlobsRestored     int
	BlobsHashMismatch int
	Errors            int
}

// Restore pulls every object in the vault and reinserts it locally.
// Session inserts are idempotent on session id, so restoring over a
// live archive only fills gaps.
func Restore(conn *sql.DB, st *store.Store, blobDir string, bs Store, vaultID string, master []byte) (*RestoreResult, error) {
	res := &RestoreResult{}

	segKeys, err := bs.List(SegmentPrefix(vaultID))
	if err != nil {
		return nil, err
	}
	blobKeys, err := bs.List(BlobPrefix(vaultID))
	if err != nil {
		return nil, err
	}

	for _, k := range filterKeys(segKeys, ".pseg") {
		if err := restoreSegment(conn, st, bs, k, vaultID, master, res); err != nil {
			res.Errors++
		}
	}
	for _, k := range filterKeys(blobKeys, ".pblob") {
		if err := restoreBlob(st, blobDir, bs, k, vaultID, master, res); err != nil {
			res.Errors++
		}
	}
	return res, nil
}

// filterKeys drops staged partials and unknown file types, even if the
// backend's listing failed to.
func filterKeys(keys []string, suffix string) []string {
	var out []string
	for _, k := range keys {
		if strings.Contains(k, "tmp/") || strings.HasSuffix(k, ".partial") {
			continue
		}
		if !strings.HasSuffix(k, suffix) {
			continue
		}
		out = append(out, k)
	}
	return out
}

func restoreSegment(conn *sql.DB, st *store.Store, bs Store, key, vaultID string, master []byte, res *RestoreResult) error {
	raw, err := bs.Get(key)
	if err != nil {
		return err
	}
	h, body, err := DecodeObject(raw)
	if err != nil {
		res.SegmentsInvalid++
		return err
	}
	if h.ObjectType != TypeSeg {
		return nil
	}
	if h.VaultID != vaultID {
		res.SegmentsInvalid++
		return fmt.Errorf("segment vault %s does not match %s", h.VaultID, vaultID)
	}
	plain, err := DecryptObject(h, body, master)
	if err != nil {
		res.SegmentsInvalid++
		return err
	}
	var payload SegmentPayload
	if err := json.Unmarshal(plain, &payload); err != nil {
		res.SegmentsInvalid++
		return err
	}

	for _, ss := range payload.Sessions {
		a := ss.Archived
		inserted, err := st.Insert(&a)
		if err != nil {
			return err
		}
		if !inserted {
			res.SessionsSkipped++
			continue
		}
		res.SessionsRestored++
		var samples []session.Sample
		for _, sp := range ss.Samples {
			samples = append(samples, session.Sample{
				Material: sp.Material, Percentage: sp.Pct, Timestamp: sp.Ts,
			})
		}
		if err := st.InsertSamples(a.ID, samples); err != nil {
			return err
		}
		// Restored sessions count as published to this vault already.
		_, _ = conn.Exec(
			`INSERT OR IGNORE INTO backup_published (session_id, vault_id, segment_id, published_at)
			 VALUES (?, ?, ?, strftime('%s','now'))`,
			a.ID, vaultID, h.SegmentID)
	}
	res.SegmentsRestored++
	return nil
}

func restoreBlob(st *store.Store, blobDir string, bs Store, key, vaultID string, master []byte, res *RestoreResult) error {
	raw, err := bs.Get(key)
	if err != nil {
		return err
	}
	h, body, err := DecodeObject(raw)
	if err != nil {
		res.Errors++
		return err
	}
	if h.ObjectType != TypeBlob {
		return nil
	}
	if h.VaultID != vaultID {
		return fmt.Errorf("blob vault %s does not match %s", h.VaultID, vaultID)
	}
	compressed, err := DecryptObject(h, body, master)
	if err != nil {
		return err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return err
	}
	content, err := dec.DecodeAll(compressed, nil)
	dec.Close()
	if err != nil {
		return err
	}
	sum := sha256.Sum256(content)
	if !strings.EqualFold(hex.EncodeToString(sum[:]), h.BlobHash) {
		res.BlobsHashMismatch++
		return fmt.Errorf("blob %s: content digest mismatch", h.BlobHash)
	}

	sha, path, n, err := blob.Put(blobDir, content)
	if err != nil {
		return err
	}
	if err := st.RecordBlob(sha, path, n); err != nil {
		return err
	}
	res.BlobsRestored++
	return nil
}
