// Package blob stores session journal excerpts compressed and
// content-addressed by sha256.
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Put writes content to blobDir as <aa>/<sha256>.zst, where aa is the
// first two hex chars of the digest. Identical content dedupes to the
// existing file. Returns the sha256 hex, the storage path, and the
// uncompressed length.
func Put(blobDir string, content []byte) (sha256Hex, storagePath string, byteLen int, err error) {
	h := sha256.Sum256(content)
	sha256Hex = hex.EncodeToString(h[:])
	subDir := filepath.Join(blobDir, sha256Hex[:2])
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		return "", "", 0, err
	}
	storagePath = filepath.Join(subDir, sha256Hex+".zst")

	if _, err := os.Stat(storagePath); err == nil {
		return sha256Hex, storagePath, len(content), nil
	}

	f, err := os.Create(storagePath)
	if err != nil {
		return "", "", 0, err
	}
	defer f.Close()
	w, err := zstd.NewWriter(f)
	if err != nil {
		os.Remove(storagePath)
		return "", "", 0, err
	}
	n, err := w.Write(content)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(storagePath)
		return "", "", 0, err
	}
	if n != len(content) {
		os.Remove(storagePath)
		return "", "", 0, fmt.Errorf("incomplete write")
	}
	return sha256Hex, storagePath, len(content), nil
}

// Load reads and decompresses the blob with the given digest from
// blobDir, verifying content against the digest.
func Load(blobDir, sha256Hex string) ([]byte, error) {
	if len(sha256Hex) < 2 {
		return nil, fmt.Errorf("bad blob digest %q", sha256Hex)
	}
	path := filepath.Join(blobDir, sha256Hex[:2], sha256Hex+".zst")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	h := sha256.Sum256(content)
	if hex.EncodeToString(h[:]) != sha256Hex {
		return nil, fmt.Errorf("blob %s: content digest mismatch", sha256Hex)
	}
	return content, nil
}
