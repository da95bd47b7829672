package backup

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/prospect-mining/prospect/internal/blob"
	"github.com/prospect-mining/prospect/internal/store"
)

// PublishResult summarizes one publish run.
type PublishResult struct {
	SegmentsPublished int
	SessionsPublished int
	BlobsPublished    int
}

// Publish uploads sessions not yet published to this vault as one
// segment, plus the excerpt blobs they reference. With encrypt true the
// payloads are sealed under master.
func Publish(conn *sql.DB, st *store.Store, blobDir string, bs Store, vaultID, nodeID string, master []byte, encrypt bool) (*PublishResult, error) {
	res := &PublishResult{}

	all, err := st.All()
	if err != nil {
		return nil, err
	}
	var pending []store.Archived
	for _, a := range all {
		var one int
		err := conn.QueryRow(
			`SELECT 1 FROM backup_published WHERE session_id = ? AND vault_id = ?`, a.ID, vaultID).Scan(&one)
		if err == sql.ErrNoRows {
			pending = append(pending, a)
		} else if err != nil {
			return nil, err
		}
	}
	if len(pending) == 0 {
		return res, nil
	}

	segmentID := uuid.New().String()
	payload := &SegmentPayload{}
	for _, a := range pending {
		ss := SegmentSession{Archived: a}
		samples, err := st.SamplesFor(a.ID)
		if err != nil {
			return nil, err
		}
		for _, sm := range samples {
			ss.Samples = append(ss.Samples, SamplePoint{
				Ts: sm.Timestamp, Material: sm.Material, Pct: sm.Percentage,
			})
		}
		payload.Sessions = append(payload.Sessions, ss)
	}

	h := &Header{
		Magic:      Magic,
		Version:    Version,
		ObjectType: TypeSeg,
		VaultID:    vaultID,
		NodeID:     nodeID,
		SegmentID:  segmentID,
		CreatedAt:  time.Now().UTC(),
	}
	raw, err := EncodeSegment(h, payload, master, encrypt && len(master) == KeySize)
	if err != nil {
		return nil, err
	}
	if err := bs.PutAtomic(SegmentKey(vaultID, nodeID, segmentID), raw); err != nil {
		return nil, err
	}

	for _, a := range pending {
		if a.ExcerptSha256 == "" {
			continue
		}
		n, err := publishBlob(blobDir, bs, vaultID, a.ExcerptSha256, master, encrypt)
		if err != nil {
			return nil, err
		}
		res.BlobsPublished += n
	}

	tx, err := conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	now := float64(time.Now().UnixNano()) / 1e9
	for _, a := range pending {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO backup_published (session_id, vault_id, segment_id, published_at) VALUES (?, ?, ?, ?)`,
			a.ID, vaultID, segmentID, now); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	res.SegmentsPublished = 1
	res.SessionsPublished = len(pending)
	return res, nil
}

// publishBlob uploads one excerpt blob unless already present in the
// vault. Content travels uncompressed-then-zstd like the local store;
// the header records the plaintext digest for restore verification.
func publishBlob(blobDir string, bs Store, vaultID, sha string, master []byte, encrypt bool) (int, error) {
	key := BlobKey(vaultID, sha)
	if _, err := bs.Get(key); err == nil {
		return 0, nil
	} else if !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	content, err := blob.Load(blobDir, sha)
	if err != nil {
		return 0, err
	}
	sum := sha256.Sum256(content)
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return 0, err
	}
	compressed := enc.EncodeAll(content, nil)
	enc.Close()

	h := &Header{
		Magic:        Magic,
		Version:      Version,
		ObjectType:   TypeBlob,
		VaultID:      vaultID,
		CreatedAt:    time.Now().UTC(),
		BlobHash:     hex.EncodeToString(sum[:]),
		ByteLenPlain: len(content),
		Compression:  "zstd",
	}
	raw, err := EncodeBlob(h, compressed, master, encrypt && len(master) == KeySize)
	if err != nil {
		return 0, err
	}
	if err := bs.PutAtomic(key, raw); err != nil {
		return 0, err
	}
	return 1, nil
}
