// Package backup publishes archived sessions to an object store and
// restores them, with optional envelope encryption.
package backup

import (
	"time"

	"github.com/prospect-mining/prospect/internal/store"
)

// Object types of the backup storage contract, v0.
const (
	Magic    = "PMOBJ"
	Version  = 0
	TypeSeg  = "segment"
	TypeBlob = "blob"
)

// Header is the unencrypted routing prefix of each object. It doubles
// as AEAD associated data, so tampering with it fails decryption.
type Header struct {
	Magic      string    `json:"magic"`
	Version    int       `json:"version"`
	ObjectType string    `json:"object_type"`
	VaultID    string    `json:"vault_id"`
	CreatedAt  time.Time `json:"created_at"`
	Crypto     CryptoEnv `json:"crypto"`

	// Segment-only
	NodeID    string `json:"node_id,omitempty"`
	SegmentID string `json:"segment_id,omitempty"`

	// Blob-only
	BlobHash     string `json:"blob_hash,omitempty"`
	ByteLenPlain int    `json:"byte_len_plain,omitempty"`
	Compression  string `json:"compression,omitempty"`
}

// CryptoEnv is the per-object envelope: hex nonce and the object key
// wrapped with the master key. Empty when the object is plaintext.
type CryptoEnv struct {
	NonceHex   string `json:"nonce"`
	WrappedKey string `json:"wrapped_key"`
}

// SegmentSession is one archived session plus its prospector readings.
type SegmentSession struct {
	store.Archived
	Samples []SamplePoint `json:"samples,omitempty"`
}

// SamplePoint is a single prospector reading inside a segment.
type SamplePoint struct {
	Ts       time.Time `json:"ts"`
	Material string    `json:"material"`
	Pct      float64   `json:"pct"`
}

// SegmentPayload is the encrypted payload of a .pseg object.
type SegmentPayload struct {
	Sessions []SegmentSession `json:"sessions"`
}
