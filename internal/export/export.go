// Package export renders archived sessions as shareable markdown, with
// the raw journal excerpt attached when its blob is still on disk.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/prospect-mining/prospect/internal/blob"
	"github.com/prospect-mining/prospect/internal/session"
	"github.com/prospect-mining/prospect/internal/store"
)

// SessionExport holds everything a markdown export needs.
type SessionExport struct {
	Archived *store.Archived
	Samples  []session.Sample
	Excerpt  []byte
}

// Load gathers export data for one archived session. A missing excerpt
// blob is not an error; the export simply omits the raw events.
func Load(st *store.Store, blobDir, sessionID string) (*SessionExport, error) {
	a, err := st.Get(sessionID)
	if err != nil {
		return nil, err
	}
	samples, err := st.SamplesFor(sessionID)
	if err != nil {
		return nil, err
	}
	exp := &SessionExport{Archived: a, Samples: samples}
	if a.ExcerptSha256 != "" {
		if content, err := blob.Load(blobDir, a.ExcerptSha256); err == nil {
			exp.Excerpt = content
		}
	}
	return exp, nil
}

// Markdown formats the export. Output is stable for a given archive so
// exports can be diffed.
func Markdown(exp *SessionExport) string {
	a := exp.Archived
	var b strings.Builder
	b.WriteString("# Mining Session " + a.ID + "\n\n")
	ship := a.Ship
	if ship == "" {
		ship = "unknown ship"
	}
	if a.CapacityApprox {
		ship += " (capacity approximate)"
	}
	b.WriteString(fmt.Sprintf("- **Ship:** %s, %dt hold\n", ship, a.Capacity))
	b.WriteString(fmt.Sprintf("- **Started:** %s\n", a.StartedAt.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("- **Ended:** %s\n", a.EndedAt.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("- **Active time:** %s\n\n", a.ActiveDuration.Round(time.Second)))

	b.WriteString("## Materials\n\n")
	if len(a.Materials) == 0 {
		b.WriteString("No tracked materials collected.\n")
	}
	for _, m := range a.Materials {
		b.WriteString(fmt.Sprintf("- %s: %.1ft (%.1ft/hr, best %.1f%%, %d hits",
			m.Material, m.Tons, m.TonsPerHour, m.BestPct, m.Hits))
		if m.Sold > 0 {
			b.WriteString(fmt.Sprintf(", %dt sold", m.Sold))
		}
		b.WriteString(")\n")
	}

	if len(a.Notes) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, n := range a.Notes {
			b.WriteString("- " + n + "\n")
		}
	}

	if len(exp.Samples) > 0 {
		b.WriteString("\n## Prospector Readings\n\n")
		for _, s := range exp.Samples {
			b.WriteString(fmt.Sprintf("- %s  %s %.1f%%\n",
				s.Timestamp.UTC().Format("15:04:05"), s.Material, s.Percentage))
		}
	}

	if len(exp.Excerpt) > 0 {
		b.WriteString("\n## Journal Excerpt\n\n```json\n")
		b.Write(exp.Excerpt)
		if exp.Excerpt[len(exp.Excerpt)-1] != '\n' {
			b.WriteByte('\n')
		}
		b.WriteString("```\n")
	}
	return b.String()
}
