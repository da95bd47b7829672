// Package control implements the one-value-per-file command channel
// shared with the GUI and the voice-command plugin. Writes go through a
// temp file and a rename so a concurrent reader never observes a
// partially written value.
package control

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// fileName maps a channel name to its on-disk file.
func fileName(dir, name string) string {
	return filepath.Join(dir, name+".txt")
}

// Write atomically publishes value under name in dir.
func Write(dir, name, value string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, name+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, fileName(dir, name)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Read returns the current value of name. ok is false when the file is
// absent, which is the normal idle state of a command channel.
func Read(dir, name string) (value string, ok bool, err error) {
	data, err := os.ReadFile(fileName(dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return strings.TrimSpace(string(data)), true, nil
}

// Consume reads and removes name, so each published command is acted
// on exactly once.
func Consume(dir, name string) (value string, ok bool, err error) {
	value, ok, err = Read(dir, name)
	if err != nil || !ok {
		return value, ok, err
	}
	if err := os.Remove(fileName(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return value, true, err
	}
	return value, true, nil
}
