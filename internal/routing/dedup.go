package routing

import (
	"sort"
	"strings"
)

// TrailSetKey builds the identity dedup key: the sorted tuple of constituent
// trail names
func TrailSetKey(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x1f")
}

// Jaccard computes |A n B| / |A u B| over two trail-name sets
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	setA := make(map[string]bool, len(a))
	for _, name := range a {
		setA[name] = true
	}

	setB := make(map[string]bool, len(b))
	inter := 0
	for _, name := range b {
		if setB[name] {
			continue
		}
		setB[name] = true
		if setA[name] {
			inter++
		}
	}

	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 1.0
	}
	return float64(inter) / float64(union)
}

// Deduper suppresses near-duplicate routes. The first acceptance wins:
// later routes colliding on the exact trail set, or exceeding the Jaccard
// threshold against any accepted route, are rejected.
type Deduper struct {
	Threshold float64

	keys     map[string]bool
	accepted [][]string
}

// NewDeduper creates a deduper with the given Jaccard threshold
func NewDeduper(threshold float64) *Deduper {
	return &Deduper{
		Threshold: threshold,
		keys:      make(map[string]bool),
	}
}

// Accept records the route's trail set if it is not a near-duplicate.
// It returns false (and records nothing) when the route should be dropped,
// along with the highest similarity observed against accepted routes.
func (d *Deduper) Accept(trailNames []string) (bool, float64) {
	key := TrailSetKey(trailNames)
	if d.keys[key] {
		return false, 1.0
	}

	maxSim := 0.0
	for _, prev := range d.accepted {
		sim := Jaccard(trailNames, prev)
		if sim > maxSim {
			maxSim = sim
		}
		if sim > d.Threshold {
			return false, sim
		}
	}

	d.keys[key] = true
	d.accepted = append(d.accepted, append([]string(nil), trailNames...))
	return true, maxSim
}
