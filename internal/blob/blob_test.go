package blob

import (
	"strings"
	"testing"
)

func TestPutAndLoad(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`{"timestamp":"2026-03-14T15:00:00Z","event":"MiningRefined","Type":"painite"}` + "\n")

	sha, path, n, err := Put(dir, content)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(sha) != 64 {
		t.Errorf("sha = %q, want 64-char hex", sha)
	}
	if !strings.HasSuffix(path, sha+".zst") {
		t.Errorf("path = %q", path)
	}
	if !strings.HasPrefix(path, dir) {
		t.Errorf("path %q not under %q", path, dir)
	}
	if n != len(content) {
		t.Errorf("byteLen = %d, want %d", n, len(content))
	}

	got, err := Load(dir, sha)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("Load = %q, want %q", got, content)
	}
}

func TestPutDedupes(t *testing.T) {
	dir := t.TempDir()
	content := []byte("same excerpt")

	sha1, path1, _, err := Put(dir, content)
	if err != nil {
		t.Fatalf("Put 1: %v", err)
	}
	sha2, path2, _, err := Put(dir, content)
	if err != nil {
		t.Fatalf("Put 2: %v", err)
	}
	if sha1 != sha2 || path1 != path2 {
		t.Errorf("dedupe: got %q %q, want identical to first put", sha2, path2)
	}
}

func TestLoadMissing(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir, strings.Repeat("ab", 32)); err == nil {
		t.Error("Load of absent blob succeeded")
	}
}
