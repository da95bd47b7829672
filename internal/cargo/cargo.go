// Package cargo models hold snapshots and the side-channel status
// files the game writes alongside the journal.
package cargo

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/prospect-mining/prospect/internal/journal"
)

// Snapshot is a point-in-time mapping of cargo item to carried tons.
type Snapshot map[string]int

// Clone returns an independent copy.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Total returns the summed tonnage across all items.
func (s Snapshot) Total() int {
	var n int
	for _, v := range s {
		n += v
	}
	return n
}

// Delta separates quantity gained from quantity removed between two
// snapshots. Both maps hold non-negative values; nothing is netted.
type Delta struct {
	Gained  map[string]int
	Removed map[string]int
}

// Diff compares begin and end hold contents. Items that grew appear in
// Gained, items that shrank in Removed. A user who mined 10 and sold 4
// sees both figures, not a silent +6.
func Diff(begin, end Snapshot) Delta {
	d := Delta{Gained: map[string]int{}, Removed: map[string]int{}}
	for item, endCount := range end {
		if diff := endCount - begin[item]; diff > 0 {
			d.Gained[item] = diff
		}
	}
	for item, beginCount := range begin {
		if diff := beginCount - end[item]; diff > 0 {
			d.Removed[item] = diff
		}
	}
	return d
}

// cargoFile is the on-disk shape of the Cargo.json side channel.
type cargoFile struct {
	Inventory []struct {
		Name  string `json:"Name"`
		Count int    `json:"Count"`
	} `json:"Inventory"`
}

// ReadSnapshot reads the hold contents side-channel file. The game
// rewrites it in place, so a truncated or missing read is a transient
// condition: callers keep their previous snapshot and retry next cycle.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cf cargoFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse cargo file: %w", err)
	}
	snap := make(Snapshot, len(cf.Inventory))
	for _, item := range cf.Inventory {
		snap[journal.CanonicalName(item.Name)] += item.Count
	}
	return snap, nil
}

// Status is the ship-status side channel: which ship is flown and how
// much it can hold. Swaps done through menus the journal never logs
// still show up here.
type Status struct {
	Ship          string  `json:"Ship"`
	Cargo         float64 `json:"Cargo"`
	CargoCapacity int     `json:"CargoCapacity"`
}

// ReadStatus reads the ship status side-channel file. Same transient
// semantics as ReadSnapshot.
func ReadStatus(path string) (*Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse status file: %w", err)
	}
	return &st, nil
}
