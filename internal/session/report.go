package session

import (
	"fmt"
	"sort"
	"time"

	"github.com/prospect-mining/prospect/internal/cargo"
)

// Report is the finalized, immutable view of a stopped session, handed
// to the report writer and the archive.
type Report struct {
	SessionID      string         `json:"session_id"`
	Ship           string         `json:"ship,omitempty"`
	Capacity       int            `json:"capacity,omitempty"`
	CapacityApprox bool           `json:"capacity_approx,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	EndedAt        time.Time      `json:"ended_at"`
	ActiveDuration time.Duration  `json:"active_duration"`
	Materials      []MaterialStat `json:"materials"`
	Sold           map[string]int `json:"sold,omitempty"`
	Delta          cargo.Delta    `json:"delta"`
	Notes          []string       `json:"notes,omitempty"`
}

// finalize builds the report: event-derived totals are authoritative,
// the raw snapshot delta is a cross-check. Disagreement produces notes,
// because cargo changes for reasons outside mining.
func (s *Session) finalize(endSnap cargo.Snapshot) *Report {
	rep := &Report{
		SessionID:      s.id,
		Ship:           s.ship,
		Capacity:       s.shipCapacity,
		CapacityApprox: s.capacityApprox,
		StartedAt:      s.startedAt,
		EndedAt:        s.endedAt,
		ActiveDuration: s.activeDur,
		Materials:      s.statsAt(s.activeDur),
		Delta:          cargo.Diff(s.startSnap, endSnap),
	}
	if len(s.sold) > 0 {
		rep.Sold = make(map[string]int, len(s.sold))
		for m, n := range s.sold {
			rep.Sold[m] = n
		}
	}
	rep.Notes = s.reconcile(rep.Delta)
	return rep
}

// reconcile cross-checks event-derived totals against the snapshot
// delta. A ship swap mid-session makes the delta incomparable (the
// baseline was reset at the swap), so per-material checks are skipped
// in favour of a single note.
func (s *Session) reconcile(delta cargo.Delta) []string {
	if s.swapped {
		return []string{"ship swap mid-session; snapshot delta covers post-swap baseline only"}
	}

	names := map[string]bool{}
	for m := range s.totals {
		names[m] = true
	}
	for m := range s.sold {
		names[m] = true
	}
	for m := range delta.Gained {
		if s.tracked[m] {
			names[m] = true
		}
	}
	ordered := make([]string, 0, len(names))
	for m := range names {
		ordered = append(ordered, m)
	}
	sort.Strings(ordered)

	var notes []string
	for _, m := range ordered {
		mined := s.totals[m]
		expected := mined - float64(s.sold[m])
		net := float64(delta.Gained[m] - delta.Removed[m])
		if expected == net {
			continue
		}
		notes = append(notes, fmt.Sprintf(
			"%s: events recorded %+.1ft mined, %dt sold; hold changed by %+.1ft",
			m, mined, s.sold[m], net))
	}
	return notes
}
