// Package report renders archived sessions for the CLI.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/prospect-mining/prospect/internal/store"
)

// WriteJSON emits the archived session as indented JSON.
func WriteJSON(w io.Writer, a *store.Archived) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

// RenderSession writes a human-readable session report: a summary
// block, the per-material table, and any reconciliation notes.
func RenderSession(w io.Writer, a *store.Archived) {
	fmt.Fprintf(w, "session %s\n", a.ID)
	ship := a.Ship
	if ship == "" {
		ship = "unknown"
	}
	capNote := ""
	if a.CapacityApprox {
		capNote = " (approx)"
	}
	fmt.Fprintf(w, "ship:     %s, %dt hold%s\n", ship, a.Capacity, capNote)
	fmt.Fprintf(w, "started:  %s\n", a.StartedAt.Local().Format(time.RFC1123))
	fmt.Fprintf(w, "active:   %s\n\n", a.ActiveDuration.Round(time.Second))

	if len(a.Materials) == 0 {
		fmt.Fprintln(w, "no tracked materials collected")
	} else {
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.AppendHeader(table.Row{"Material", "Tons", "T/hr", "Avg %", "Best %", "Hits", "Sold"})
		for _, m := range a.Materials {
			tw.AppendRow(table.Row{
				m.Material,
				fmt.Sprintf("%.1f", m.Tons),
				fmt.Sprintf("%.1f", m.TonsPerHour),
				fmt.Sprintf("%.1f", m.AvgPct),
				fmt.Sprintf("%.1f", m.BestPct),
				m.Hits,
				m.Sold,
			})
		}
		tw.Render()
	}

	if len(a.Notes) > 0 {
		fmt.Fprintln(w)
		for _, n := range a.Notes {
			fmt.Fprintf(w, "note: %s\n", n)
		}
	}
}

// RenderSessionList writes one row per archived session, newest first
// as provided.
func RenderSessionList(w io.Writer, sessions []store.Archived) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "no archived sessions")
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Session", "Ended", "Active", "Ship", "Notes"})
	for _, a := range sessions {
		id := a.ID
		if len(id) > 8 {
			id = id[:8]
		}
		tw.AppendRow(table.Row{
			id,
			a.EndedAt.Local().Format("2006-01-02 15:04"),
			a.ActiveDuration.Round(time.Minute),
			a.Ship,
			len(a.Notes),
		})
	}
	tw.Render()
}
