// Package tailer maintains a read cursor into the rotating journal log
// and yields newly appended events without re-delivery.
package tailer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/prospect-mining/prospect/internal/journal"
)

// ErrNoJournal is returned by Open when the directory holds no journal files.
var ErrNoJournal = errors.New("no journal file found")

const journalGlob = "Journal.*.log"

// Cursor tracks how far into the current journal generation has been
// consumed. File is the base name of the open generation; the game
// never reuses names across rotations.
type Cursor struct {
	File   string
	Offset int64
}

// Health is the observable tailer status, refreshed on every poll.
// Transient read failures land here instead of being raised.
type Health struct {
	LastPoll time.Time
	LastErr  string
	Cursor   Cursor
	Skipped  int // lines dropped as unparsable
}

// Tailer reads newly appended journal events. Not safe for concurrent
// use; the monitor worker owns it exclusively.
type Tailer struct {
	dir     string
	file    *os.File
	cursor  Cursor
	partial []byte // unterminated trailing line held back for the next poll
	health  Health
}

// Open locates the most recently written journal file in dir. A missing
// directory is a fatal configuration error; an empty directory yields
// ErrNoJournal.
func Open(dir string) (*Tailer, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("journal directory: %w", err)
	}
	name, err := latest(dir)
	if err != nil {
		return nil, err
	}
	t := &Tailer{dir: dir}
	if err := t.open(name); err != nil {
		return nil, err
	}
	return t, nil
}

// latest returns the base name of the newest journal file in dir.
func latest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, journalGlob))
	if err != nil {
		return "", err
	}
	var best string
	var bestMod time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue // racing a rotation; the next poll resolves it
		}
		name := filepath.Base(m)
		if best == "" || info.ModTime().After(bestMod) ||
			(info.ModTime().Equal(bestMod) && name > best) {
			best, bestMod = name, info.ModTime()
		}
	}
	if best == "" {
		return "", fmt.Errorf("%s: %w", dir, ErrNoJournal)
	}
	return best, nil
}

func (t *Tailer) open(name string) error {
	f, err := os.Open(filepath.Join(t.dir, name))
	if err != nil {
		return err
	}
	if t.file != nil {
		t.file.Close()
	}
	t.file = f
	t.cursor = Cursor{File: name}
	return nil
}

// Poll reads any bytes appended since the last call and returns the
// complete events they contain, in file order. When a newer journal
// generation exists, the old one is drained to EOF first, then the
// cursor moves to the new file at offset zero. Poll never raises for
// transient I/O failures; it returns what it has and records the
// failure in Health.
func (t *Tailer) Poll() []journal.Event {
	t.health.LastPoll = time.Now()
	t.health.LastErr = ""

	var out []journal.Event
	for {
		evs, err := t.readAppended()
		out = append(out, evs...)
		if err != nil {
			t.health.LastErr = err.Error()
			break
		}
		next, err := latest(t.dir)
		if err != nil {
			t.health.LastErr = err.Error()
			break
		}
		if next == t.cursor.File {
			break
		}
		// Rotation. The abandoned generation was drained above; a
		// trailing unterminated line in it will never complete, so the
		// held-back partial is dropped with it.
		if len(t.partial) > 0 {
			t.partial = nil
			t.health.Skipped++
		}
		if err := t.open(next); err != nil {
			t.health.LastErr = err.Error()
			break
		}
	}
	t.health.Cursor = t.cursor
	return out
}

// readAppended reads from the cursor to EOF and parses complete lines.
// The cursor advances past everything read; an unterminated trailing
// line stays buffered in memory, never re-read from disk.
func (t *Tailer) readAppended() ([]journal.Event, error) {
	if t.file == nil {
		if err := t.open(t.cursor.File); err != nil {
			return nil, err
		}
	}
	if _, err := t.file.Seek(t.cursor.Offset, io.SeekStart); err != nil {
		return nil, err
	}
	buf, err := io.ReadAll(t.file)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, nil
	}
	t.cursor.Offset += int64(len(buf))

	data := append(t.partial, buf...)
	var evs []journal.Event
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(data[:i], "\r")
		data = data[i+1:]
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		ev, err := journal.ParseLine(line)
		if err != nil {
			t.health.Skipped++
			continue
		}
		evs = append(evs, ev)
	}
	t.partial = append([]byte(nil), data...)
	return evs, nil
}

// SkipToEnd advances the cursor to the current end of file without
// emitting events. Called at startup so historical events accumulated
// before this run are not re-processed.
func (t *Tailer) SkipToEnd() error {
	if t.file == nil {
		return fmt.Errorf("tailer closed")
	}
	end, err := t.file.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	t.cursor.Offset = end
	t.partial = nil
	t.health.Cursor = t.cursor
	return nil
}

// Health returns the status recorded by the last poll.
func (t *Tailer) Health() Health {
	return t.health
}

// Cursor returns the current read position.
func (t *Tailer) Cursor() Cursor {
	return t.cursor
}

// Close releases the open file handle.
func (t *Tailer) Close() error {
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}
