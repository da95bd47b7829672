// Package session tracks one mining session: the state machine, the
// event-derived material totals, and the finalized report.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prospect-mining/prospect/internal/cargo"
	"github.com/prospect-mining/prospect/internal/journal"
)

// ErrInvalidTransition is returned by user-initiated transitions called
// from the wrong state.
var ErrInvalidTransition = errors.New("invalid session state transition")

// State of a session. Idle and Ended are terminal with respect to
// mutation; Cancel returns an aborted session to a fresh Idle.
type State int

const (
	StateIdle State = iota
	StateActive
	StatePaused
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "idle"
	}
}

// MarshalJSON encodes the state by name so control-file readers see
// "active", not an enum ordinal.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the names produced by MarshalJSON.
func (s *State) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch name {
	case "active":
		*s = StateActive
	case "paused":
		*s = StatePaused
	case "ended":
		*s = StateEnded
	default:
		*s = StateIdle
	}
	return nil
}

// Sample is one prospector reading for one tracked material.
type Sample struct {
	Material   string
	Percentage float64
	Timestamp  time.Time
}

// Announcer receives prospector hits that clear the announce threshold.
// The session calls it inline and never waits on speech; implementations
// must return promptly.
type Announcer interface {
	ProspectorHit(material string, percentage float64)
}

// CapacityLookup resolves the current ship's cargo capacity. Consulted
// after a ship swap; a lookup failure falls back to the last-known
// value and marks fill statistics approximate.
type CapacityLookup interface {
	CargoCapacity() (int, error)
}

// Config is the tracked-material and announcement policy, injected at
// construction. No package-level mutable state.
type Config struct {
	TrackedMaterials     []string
	AnnounceThresholdPct float64
}

// Session is mutated exclusively by the monitor worker. Other
// goroutines read through View().
type Session struct {
	cfg       Config
	tracked   map[string]bool
	announcer Announcer
	capacity  CapacityLookup

	id        string
	state     State
	startedAt time.Time
	endedAt   time.Time
	resumedAt time.Time
	activeDur time.Duration

	startSnap cargo.Snapshot
	totals    map[string]float64
	sold      map[string]int
	samples   []Sample

	ship           string
	shipCapacity   int
	capacityApprox bool
	swapped        bool

	excerpt []json.RawMessage
}

// New builds an Idle session. announcer and capacity may be nil.
func New(cfg Config, announcer Announcer, capacity CapacityLookup) *Session {
	tracked := make(map[string]bool, len(cfg.TrackedMaterials))
	for _, m := range cfg.TrackedMaterials {
		tracked[journal.CanonicalName(m)] = true
	}
	return &Session{
		cfg:       cfg,
		tracked:   tracked,
		announcer: announcer,
		capacity:  capacity,
		totals:    map[string]float64{},
		sold:      map[string]int{},
	}
}

// ID returns the session identity, empty until the first Start.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Start begins tracking. The cargo snapshot becomes the differ
// baseline; totals and samples start empty.
func (s *Session) Start(snap cargo.Snapshot, now time.Time) error {
	if s.state != StateIdle {
		return fmt.Errorf("start from %s: %w", s.state, ErrInvalidTransition)
	}
	s.id = uuid.New().String()
	s.state = StateActive
	s.startedAt = now
	s.resumedAt = now
	s.activeDur = 0
	s.startSnap = snap.Clone()
	s.totals = map[string]float64{}
	s.sold = map[string]int{}
	s.samples = nil
	s.swapped = false
	s.capacityApprox = false
	s.excerpt = nil
	return nil
}

// Pause freezes active-duration accumulation. Accumulated totals stay.
func (s *Session) Pause(now time.Time) error {
	if s.state != StateActive {
		return fmt.Errorf("pause from %s: %w", s.state, ErrInvalidTransition)
	}
	s.activeDur += now.Sub(s.resumedAt)
	s.state = StatePaused
	return nil
}

// Resume restarts active-duration accumulation.
func (s *Session) Resume(now time.Time) error {
	if s.state != StatePaused {
		return fmt.Errorf("resume from %s: %w", s.state, ErrInvalidTransition)
	}
	s.resumedAt = now
	s.state = StateActive
	return nil
}

// Stop finalizes the session and returns its immutable report. Allowed
// from Active or Paused. Reconciliation disagreements become notes on
// the report, never errors.
func (s *Session) Stop(snap cargo.Snapshot, now time.Time) (*Report, error) {
	switch s.state {
	case StateActive:
		s.activeDur += now.Sub(s.resumedAt)
	case StatePaused:
		// duration already frozen
	default:
		return nil, fmt.Errorf("stop from %s: %w", s.state, ErrInvalidTransition)
	}
	s.state = StateEnded
	s.endedAt = now
	return s.finalize(snap), nil
}

// Cancel discards all accumulated state and returns to Idle. A
// subsequent Start begins a fresh, unrelated accumulation.
func (s *Session) Cancel() error {
	if s.state != StateActive && s.state != StatePaused {
		return fmt.Errorf("cancel from %s: %w", s.state, ErrInvalidTransition)
	}
	s.id = ""
	s.state = StateIdle
	s.startedAt = time.Time{}
	s.activeDur = 0
	s.startSnap = nil
	s.totals = map[string]float64{}
	s.sold = map[string]int{}
	s.samples = nil
	s.swapped = false
	s.capacityApprox = false
	s.excerpt = nil
	return nil
}

// Apply consumes one journal event. Only an Active session mutates;
// every other state ignores the event. Unknown kinds are no-ops, so new
// upstream event types degrade silently.
func (s *Session) Apply(ev journal.Event) {
	if s.state != StateActive {
		return
	}
	switch ev.Kind {
	case journal.KindProspected:
		s.applyProspected(ev)
	case journal.KindRefined:
		if s.tracked[ev.Material] {
			s.totals[ev.Material] += float64(ev.Count)
			s.record(ev)
		}
	case journal.KindMarketSell, journal.KindEjectCargo:
		if s.tracked[ev.Material] {
			s.sold[ev.Material] += ev.Count
			s.record(ev)
		}
	case journal.KindShipSwap:
		s.applyShipSwap(ev)
	}
}

func (s *Session) applyProspected(ev journal.Event) {
	recorded := false
	for _, m := range ev.Materials {
		name := journal.CanonicalName(m.Name)
		if !s.tracked[name] {
			continue
		}
		recorded = true
		s.samples = append(s.samples, Sample{
			Material:   name,
			Percentage: m.Proportion,
			Timestamp:  ev.Timestamp,
		})
		// Below-threshold readings are kept for statistics but not
		// flagged for announcement.
		if s.announcer != nil && m.Proportion >= s.cfg.AnnounceThresholdPct {
			s.announcer.ProspectorHit(name, m.Proportion)
		}
	}
	if recorded {
		s.record(ev)
	}
}

func (s *Session) applyShipSwap(ev journal.Event) {
	s.record(ev)
	if ev.Ship != "" {
		s.ship = ev.Ship
	}
	s.swapped = true
	// The previous ship's capacity assumption is invalid from here on.
	// Refresh it, or fall back to last-known and flag fill statistics
	// as approximate.
	switch {
	case ev.Capacity > 0:
		s.shipCapacity = ev.Capacity
		s.capacityApprox = false
	case s.capacity != nil:
		if tons, err := s.capacity.CargoCapacity(); err == nil && tons > 0 {
			s.shipCapacity = tons
			s.capacityApprox = false
		} else {
			s.capacityApprox = true
		}
	default:
		s.capacityApprox = true
	}
}

// SetShip seeds ship identity and capacity from the side channel,
// before Start or when the out-of-band poller detects a swap.
func (s *Session) SetShip(name string, capacity int) {
	if name != "" {
		s.ship = name
	}
	if capacity > 0 {
		s.shipCapacity = capacity
		s.capacityApprox = false
	}
}

// ResetBaseline replaces the differ baseline with post-swap hold
// contents so the snapshot delta is not computed across a swap
// boundary. Event-derived totals are unaffected.
func (s *Session) ResetBaseline(snap cargo.Snapshot) {
	if s.state != StateActive && s.state != StatePaused {
		return
	}
	s.startSnap = snap.Clone()
}

func (s *Session) record(ev journal.Event) {
	if len(ev.Raw) > 0 {
		s.excerpt = append(s.excerpt, ev.Raw)
	}
}

// ElapsedActive returns time spent Active, excluding paused intervals.
func (s *Session) ElapsedActive(now time.Time) time.Duration {
	if s.state == StateActive {
		return s.activeDur + now.Sub(s.resumedAt)
	}
	return s.activeDur
}

// Samples returns a copy of the prospector readings collected so far.
func (s *Session) Samples() []Sample {
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Excerpt returns the raw journal lines consumed by this session, one
// JSON object per line, for archival.
func (s *Session) Excerpt() []byte {
	var out []byte
	for _, line := range s.excerpt {
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}
