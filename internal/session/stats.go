package session

import (
	"sort"
	"time"
)

// MaterialStat is derived on demand from totals and samples; it is
// never stored authoritatively.
type MaterialStat struct {
	Material    string  `json:"material"`
	Tons        float64 `json:"tons"`
	TonsPerHour float64 `json:"tons_per_hour"`
	AvgPct      float64 `json:"avg_pct"`
	BestPct     float64 `json:"best_pct"`
	Hits        int     `json:"hits"`
}

// statsAt derives per-material statistics for the given elapsed active
// duration. Materials with neither collected tons nor samples are
// omitted.
func (s *Session) statsAt(elapsed time.Duration) []MaterialStat {
	agg := map[string]*MaterialStat{}
	get := func(m string) *MaterialStat {
		st, ok := agg[m]
		if !ok {
			st = &MaterialStat{Material: m}
			agg[m] = st
		}
		return st
	}
	for m, tons := range s.totals {
		get(m).Tons = tons
	}
	for _, sample := range s.samples {
		st := get(sample.Material)
		st.Hits++
		st.AvgPct += sample.Percentage // running sum; divided below
		if sample.Percentage > st.BestPct {
			st.BestPct = sample.Percentage
		}
	}

	hours := elapsed.Hours()
	out := make([]MaterialStat, 0, len(agg))
	for _, st := range agg {
		if st.Hits > 0 {
			st.AvgPct /= float64(st.Hits)
		}
		if hours > 0 {
			st.TonsPerHour = st.Tons / hours
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tons != out[j].Tons {
			return out[i].Tons > out[j].Tons
		}
		return out[i].Material < out[j].Material
	})
	return out
}

// View is a consistent, independent copy of session state for readers
// outside the worker goroutine.
type View struct {
	ID             string
	State          State
	StartedAt      time.Time
	ActiveDuration time.Duration
	Totals         map[string]float64
	Stats          []MaterialStat
	Ship           string
	Capacity       int
	CapacityApprox bool
	HoldFillPct    float64
}

// View snapshots the session. The caller may hold the result without
// observing later mutation.
func (s *Session) View(now time.Time) View {
	elapsed := s.ElapsedActive(now)
	totals := make(map[string]float64, len(s.totals))
	var mined float64
	for m, t := range s.totals {
		totals[m] = t
		mined += t
	}
	v := View{
		ID:             s.id,
		State:          s.state,
		StartedAt:      s.startedAt,
		ActiveDuration: elapsed,
		Totals:         totals,
		Stats:          s.statsAt(elapsed),
		Ship:           s.ship,
		Capacity:       s.shipCapacity,
		CapacityApprox: s.capacityApprox,
	}
	if s.shipCapacity > 0 {
		v.HoldFillPct = 100 * mined / float64(s.shipCapacity)
	}
	return v
}
