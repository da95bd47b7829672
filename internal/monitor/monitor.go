// Package monitor is the daemon core: it tails the journal, drives the
// session state machine from control commands, and archives finished
// sessions.
package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/prospect-mining/prospect/internal/blob"
	"github.com/prospect-mining/prospect/internal/cargo"
	"github.com/prospect-mining/prospect/internal/control"
	"github.com/prospect-mining/prospect/internal/journal"
	"github.com/prospect-mining/prospect/internal/session"
	"github.com/prospect-mining/prospect/internal/store"
	"github.com/prospect-mining/prospect/internal/tailer"
)

// Announcer publishes prospector hits and lifecycle changes outward.
type Announcer interface {
	session.Announcer
	SessionState(state string)
}

// Config wires the monitor to the filesystem. JournalDir is the single
// authoritative journal location; CargoPath and StatusPath usually sit
// inside it.
type Config struct {
	JournalDir       string
	CargoPath        string
	StatusPath       string
	ControlDir       string
	BlobDir          string
	PollInterval     time.Duration
	SidePollInterval time.Duration
}

// Health is the monitor's self-report, published as a control file
// every cycle so the CLI can answer status without touching the daemon.
type Health struct {
	State     string    `json:"state"`
	SessionID string    `json:"session_id,omitempty"`
	Ship      string    `json:"ship,omitempty"`
	LastPoll  time.Time `json:"last_poll"`
	LastErr   string    `json:"last_err,omitempty"`
	File      string    `json:"journal_file,omitempty"`
	Offset    int64     `json:"journal_offset"`
	Skipped   int       `json:"lines_skipped"`
}

// StatusLookup resolves cargo capacity from the status side channel.
type StatusLookup struct {
	Path string
}

// CargoCapacity implements session.CapacityLookup.
func (s StatusLookup) CargoCapacity() (int, error) {
	st, err := cargo.ReadStatus(s.Path)
	if err != nil {
		return 0, err
	}
	if st.CargoCapacity <= 0 {
		return 0, fmt.Errorf("status reports no cargo capacity")
	}
	return st.CargoCapacity, nil
}

// Monitor owns the tailer and the live session. All mutation happens on
// the Run goroutine; outside observers read the published control files.
type Monitor struct {
	cfg      Config
	sessCfg  session.Config
	ann      Announcer
	sess     *session.Session
	tl       *tailer.Tailer
	st       *store.Store
	conn     *sql.DB
	pending  *pendingArchive
	lastShip string
	lastErr  string
}

// pendingArchive is a finalized report waiting to be written out. It is
// captured at stop time, before the session is replaced, and retried on
// every cycle until the archive writes land.
type pendingArchive struct {
	rep     *session.Report
	excerpt []byte
	samples []session.Sample
}

// New builds a monitor. The journal directory must exist; an empty one
// (no journal yet) is fine, the tailer attaches when the first file
// appears.
func New(cfg Config, sessCfg session.Config, ann Announcer, conn *sql.DB, st *store.Store) (*Monitor, error) {
	m := &Monitor{
		cfg:     cfg,
		sessCfg: sessCfg,
		ann:     ann,
		st:      st,
		conn:    conn,
	}
	m.sess = m.newSession()
	tl, err := tailer.Open(cfg.JournalDir)
	switch {
	case err == nil:
		// Live monitoring starts at the tail: history is the backfill
		// importer's job.
		if err := tl.SkipToEnd(); err != nil {
			tl.Close()
			return nil, err
		}
		m.tl = tl
	case errors.Is(err, tailer.ErrNoJournal):
		// attach later
	default:
		return nil, err
	}
	m.seedShip()
	return m, nil
}

func (m *Monitor) newSession() *session.Session {
	return session.New(m.sessCfg, m.ann, StatusLookup{Path: m.cfg.StatusPath})
}

// Run polls until ctx is done. A directory watcher wakes the loop on
// journal writes; the ticker is the fallback for filesystems that drop
// notifications.
func (m *Monitor) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if werr := watcher.Add(m.cfg.JournalDir); werr != nil {
			watcher.Close()
			watcher = nil
		}
	} else {
		watcher = nil
	}

	tick := time.NewTicker(m.cfg.PollInterval)
	defer tick.Stop()
	side := time.NewTicker(m.cfg.SidePollInterval)
	defer side.Stop()

	var events chan fsnotify.Event
	if watcher != nil {
		events = make(chan fsnotify.Event)
		go func() {
			for ev := range watcher.Events {
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					select {
					case events <- ev:
					default:
					}
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			m.Cycle(time.Now())
		case <-events:
			m.Cycle(time.Now())
		case <-side.C:
			m.SideCycle(time.Now())
		}
	}
}

// Cycle runs one monitor iteration: consume a pending control command,
// flush any report still waiting to be archived, drain the tailer,
// publish health and status.
func (m *Monitor) Cycle(now time.Time) {
	m.lastErr = ""
	if cmd, ok, err := control.Consume(m.cfg.ControlDir, "session"); err != nil {
		m.lastErr = err.Error()
	} else if ok {
		if err := m.handleCommand(cmd, now); err != nil {
			m.lastErr = err.Error()
		}
	}

	if m.pending != nil {
		if err := m.archivePending(); err != nil && m.lastErr == "" {
			m.lastErr = err.Error()
		}
	}
	m.pollJournal()
	m.publish(now)
}

func (m *Monitor) handleCommand(cmd string, now time.Time) error {
	switch cmd {
	case "start":
		if err := m.sess.Start(m.readCargo(), now); err != nil {
			return err
		}
		m.seedShip()
	case "pause":
		if err := m.sess.Pause(now); err != nil {
			return err
		}
	case "resume":
		if err := m.sess.Resume(now); err != nil {
			return err
		}
	case "cancel":
		if err := m.sess.Cancel(); err != nil {
			return err
		}
	case "stop":
		rep, err := m.sess.Stop(m.readCargo(), now)
		if err != nil {
			return err
		}
		// The session is replaced before the archive writes run; a
		// failed write must not leave the state machine stuck in Ended.
		m.pending = &pendingArchive{
			rep:     rep,
			excerpt: m.sess.Excerpt(),
			samples: m.sess.Samples(),
		}
		m.sess = m.newSession()
		m.seedShip()
	default:
		return fmt.Errorf("unknown session command %q", cmd)
	}
	m.ann.SessionState(m.sess.State().String())
	return nil
}

func (m *Monitor) pollJournal() {
	if m.tl == nil {
		tl, err := tailer.Open(m.cfg.JournalDir)
		if err != nil {
			if !errors.Is(err, tailer.ErrNoJournal) {
				m.lastErr = err.Error()
			}
			return
		}
		// A journal that appeared after startup is new: consume it
		// from the beginning.
		m.tl = tl
	}

	for _, ev := range m.tl.Poll() {
		m.sess.Apply(ev)
		if ev.Kind == journal.KindShipSwap {
			// The old baseline describes the old ship's hold.
			m.sess.ResetBaseline(m.readCargo())
			if ev.Ship != "" {
				m.lastShip = ev.Ship
			}
		}
	}
	if th := m.tl.Health(); th.LastErr != "" && m.lastErr == "" {
		m.lastErr = th.LastErr
	}
}

// SideCycle re-reads the status side channel, catching ship swaps the
// journal never reported (stale journal, swap while daemon was down).
func (m *Monitor) SideCycle(now time.Time) {
	st, err := cargo.ReadStatus(m.cfg.StatusPath)
	if err != nil {
		return
	}
	if st.Ship == "" {
		return
	}
	if m.lastShip == "" {
		m.lastShip = st.Ship
		m.sess.SetShip(st.Ship, st.CargoCapacity)
		return
	}
	if st.Ship == m.lastShip {
		return
	}
	m.lastShip = st.Ship
	m.sess.Apply(journal.Event{
		Timestamp: now,
		Kind:      journal.KindShipSwap,
		Ship:      st.Ship,
		Capacity:  st.CargoCapacity,
	})
	m.sess.ResetBaseline(m.readCargo())
}

// archivePending writes the held report out. The report stays pending
// until every write lands; blob puts and session inserts are idempotent,
// so repeating after a partial success is safe.
func (m *Monitor) archivePending() error {
	p := m.pending
	var sha string
	if len(p.excerpt) > 0 {
		var path string
		var n int
		var err error
		sha, path, n, err = blob.Put(m.cfg.BlobDir, p.excerpt)
		if err != nil {
			return err
		}
		if err := m.st.RecordBlob(sha, path, n); err != nil {
			return err
		}
	}
	if _, err := m.st.Insert(store.FromReport(p.rep, sha)); err != nil {
		return err
	}
	if err := m.st.InsertSamples(p.rep.SessionID, p.samples); err != nil {
		return err
	}
	m.pending = nil
	return nil
}

func (m *Monitor) publish(now time.Time) {
	h := Health{
		State:     m.sess.State().String(),
		SessionID: m.sess.ID(),
		Ship:      m.lastShip,
		LastPoll:  now,
		LastErr:   m.lastErr,
	}
	if m.tl != nil {
		th := m.tl.Health()
		h.File = th.Cursor.File
		h.Offset = th.Cursor.Offset
		h.Skipped = th.Skipped
	}
	if b, err := json.Marshal(h); err == nil {
		if err := control.Write(m.cfg.ControlDir, "health", string(b)); err != nil {
			fmt.Fprintf(os.Stderr, "prospectd: write health: %v\n", err)
		}
	}

	view := m.sess.View(now)
	if b, err := json.Marshal(view); err == nil {
		_ = control.Write(m.cfg.ControlDir, "status", string(b))
	}
}

// seedShip initializes ship identity from the status side channel.
func (m *Monitor) seedShip() {
	st, err := cargo.ReadStatus(m.cfg.StatusPath)
	if err != nil {
		return
	}
	if st.Ship != "" {
		m.lastShip = st.Ship
	}
	m.sess.SetShip(st.Ship, st.CargoCapacity)
}

// readCargo returns the current hold snapshot, empty when the side
// channel is missing or mid-write.
func (m *Monitor) readCargo() cargo.Snapshot {
	snap, err := cargo.ReadSnapshot(m.cfg.CargoPath)
	if err != nil {
		return cargo.Snapshot{}
	}
	return snap
}

// Close makes a last archive attempt for any held report and releases
// the tailer.
func (m *Monitor) Close() error {
	if m.pending != nil {
		_ = m.archivePending()
	}
	if m.tl != nil {
		return m.tl.Close()
	}
	return nil
}
