// Package journal parses the game's journal event log (JSONL, one
// event object per line).
package journal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the event variants the aggregator consumes.
// Anything else degrades to KindOther, which consumers treat as a no-op.
type Kind int

const (
	KindOther Kind = iota
	KindProspected
	KindRefined
	KindMarketSell
	KindEjectCargo
	KindShipSwap
)

func (k Kind) String() string {
	switch k {
	case KindProspected:
		return "prospected"
	case KindRefined:
		return "refined"
	case KindMarketSell:
		return "market_sell"
	case KindEjectCargo:
		return "eject_cargo"
	case KindShipSwap:
		return "ship_swap"
	default:
		return "other"
	}
}

// ProspectedMaterial is one reading from a prospector limpet.
type ProspectedMaterial struct {
	Name       string  `json:"Name"`
	Proportion float64 `json:"Proportion"`
}

// Event is one parsed journal record. Fields beyond Timestamp, Kind and
// Name are only meaningful for the matching Kind. Raw retains the
// source line for excerpt archival.
type Event struct {
	Timestamp time.Time
	Kind      Kind
	Name      string // event name as written in the journal

	// KindProspected
	Materials []ProspectedMaterial
	Content   string
	Remaining float64

	// KindRefined, KindMarketSell, KindEjectCargo
	Material string
	Count    int

	// KindShipSwap
	Ship     string
	Capacity int // cargo capacity when the event carries it, else 0

	Raw json.RawMessage
}

// rawEvent is the superset of journal fields we decode. Unknown fields
// are ignored by encoding/json, which is what keeps future event types
// from breaking the parse.
type rawEvent struct {
	Timestamp time.Time            `json:"timestamp"`
	Event     string               `json:"event"`
	Materials []ProspectedMaterial `json:"Materials"`
	Content   string               `json:"Content"`
	Remaining float64              `json:"Remaining"`
	Type      string               `json:"Type"`
	Count     int                  `json:"Count"`
	Ship      string               `json:"Ship"`
	ShipType  string               `json:"ShipType"`
	CargoCap  int                  `json:"CargoCapacity"`
}

// ParseLine decodes one journal line. Lines that are not JSON objects
// or lack the event name fail with an error; callers skip them and
// keep tailing.
func ParseLine(line []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return Event{}, fmt.Errorf("parse journal line: %w", err)
	}
	if raw.Event == "" {
		return Event{}, fmt.Errorf("journal line missing event name")
	}

	ev := Event{
		Timestamp: raw.Timestamp,
		Name:      raw.Event,
		Raw:       json.RawMessage(append([]byte(nil), line...)),
	}

	switch raw.Event {
	case "ProspectedAsteroid":
		ev.Kind = KindProspected
		ev.Materials = raw.Materials
		ev.Content = raw.Content
		ev.Remaining = raw.Remaining
	case "MiningRefined":
		ev.Kind = KindRefined
		ev.Material = CanonicalName(raw.Type)
		// Refinement events carry no count; one bin refined is one ton.
		ev.Count = raw.Count
		if ev.Count == 0 {
			ev.Count = 1
		}
	case "MarketSell":
		ev.Kind = KindMarketSell
		ev.Material = CanonicalName(raw.Type)
		ev.Count = raw.Count
	case "EjectCargo":
		ev.Kind = KindEjectCargo
		ev.Material = CanonicalName(raw.Type)
		ev.Count = raw.Count
	case "Loadout":
		ev.Kind = KindShipSwap
		ev.Ship = raw.Ship
		ev.Capacity = raw.CargoCap
	case "ShipyardSwap":
		ev.Kind = KindShipSwap
		ev.Ship = raw.ShipType
	default:
		ev.Kind = KindOther
	}
	return ev, nil
}

// CanonicalName normalises a material or commodity name for map keys.
// The journal is inconsistent about case ("Painite" vs "painite").
func CanonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
