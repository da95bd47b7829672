// prospect-emit: synthetic journal event emitter for testing the
// daemon without a running game. Appends events to the newest journal
// in the configured directory, creating one when none exists.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

func journalDir() string {
	if v := os.Getenv("PROSPECT_JOURNAL_DIR"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "prospect", "journal")
}

func latestJournal(dir string) string {
	matches, _ := filepath.Glob(filepath.Join(dir, "Journal.*.log"))
	if len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return matches[len(matches)-1]
}

func newJournalPath(dir string) string {
	stamp := time.Now().UTC().Format("2006-01-02T150405")
	return filepath.Join(dir, "Journal."+stamp+".log")
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}

func main() {
	var (
		event    = flag.String("event", "refined", "event kind: prospected, refined, sell, eject, swap, loadout")
		material = flag.String("material", "Painite", "material name")
		pct      = flag.Float64("pct", 30.0, "prospected proportion percent")
		count    = flag.Int("count", 1, "tons for refined/sell/eject")
		ship     = flag.String("ship", "Python", "ship name for swap/loadout")
		capacity = flag.Int("capacity", 192, "cargo capacity for loadout")
		rotate   = flag.Bool("rotate", false, "start a new journal file before emitting")
	)
	flag.Parse()

	dir := journalDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fatal(err)
	}
	path := latestJournal(dir)
	if path == "" || *rotate {
		path = newJournalPath(dir)
	}

	ts := time.Now().UTC().Format(time.RFC3339)
	var payload map[string]any
	switch strings.ToLower(*event) {
	case "prospected":
		payload = map[string]any{
			"timestamp": ts, "event": "ProspectedAsteroid",
			"Materials": []map[string]any{{"Name": *material, "Proportion": *pct}},
			"Content":   "High",
			"Remaining": 100.0,
		}
	case "refined":
		payload = map[string]any{
			"timestamp": ts, "event": "MiningRefined",
			"Type": *material, "Count": *count,
		}
	case "sell":
		payload = map[string]any{
			"timestamp": ts, "event": "MarketSell",
			"Type": *material, "Count": *count,
		}
	case "eject":
		payload = map[string]any{
			"timestamp": ts, "event": "EjectCargo",
			"Type": *material, "Count": *count,
		}
	case "swap":
		payload = map[string]any{
			"timestamp": ts, "event": "ShipyardSwap",
			"ShipType": *ship,
		}
	case "loadout":
		payload = map[string]any{
			"timestamp": ts, "event": "Loadout",
			"Ship": *ship, "CargoCapacity": *capacity,
		}
	default:
		fatal(fmt.Errorf("unknown event %q", *event))
	}

	b, err := json.Marshal(payload)
	if err != nil {
		fatal(err)
	}
	if err := appendLine(path, string(b)); err != nil {
		fatal(err)
	}
	fmt.Println(path)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "prospect-emit: %v\n", err)
	os.Exit(1)
}
