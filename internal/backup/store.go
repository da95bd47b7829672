package backup

import (
	"errors"
	"path"
)

// Store is the backend contract for backup object storage.
type Store interface {
	List(prefix string) ([]string, error)
	Get(key string) ([]byte, error)
	PutAtomic(key string, data []byte) error
}

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = errors.New("object not found")

// Key layout:
//   vaults/<vault_id>/objects/segments/<node_id>/<segment_id>.pseg
//   vaults/<vault_id>/objects/blobs/<aa>/<sha256>.pblob
// Writers stage under tmp/ and rename into objects/.

// SegmentKey returns the store key for a session segment.
func SegmentKey(vaultID, nodeID, segmentID string) string {
	return path.Join("vaults", vaultID, "objects", "segments", nodeID, segmentID+".pseg")
}

// BlobKey returns the store key for an excerpt blob, sharded by the
// first two hex chars of its digest.
func BlobKey(vaultID, blobHash string) string {
	if len(blobHash) < 2 {
		return path.Join("vaults", vaultID, "objects", "blobs", blobHash+".pblob")
	}
	return path.Join("vaults", vaultID, "objects", "blobs", blobHash[:2], blobHash+".pblob")
}

// SegmentPrefix is the List prefix for a vault's segments.
func SegmentPrefix(vaultID string) string {
	return path.Join("vaults", vaultID, "objects", "segments")
}

// BlobPrefix is the List prefix for a vault's blobs.
func BlobPrefix(vaultID string) string {
	return path.Join("vaults", vaultID, "objects", "blobs")
}
