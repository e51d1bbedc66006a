package geometry

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/paulmach/orb"

	"github.com/trailforge/trailforge_core/internal/geo"
	"github.com/trailforge/trailforge_core/internal/models"
)

// minPieceM is the floor under which pieces produced by self-intersection
// repair are discarded
const minPieceM = 1.0

// Preprocessor makes every trail geometry individually well-formed before any
// cross-trail analysis. It runs a fixed-point loop of cleanup passes; each
// pass flattens complex geometries, repairs self-intersections and drops
// invalid, empty, short or duplicated linework.
type Preprocessor struct {
	MinSegmentLengthM float64
	MaxPasses         int
}

// NewPreprocessor creates a preprocessor with the given parameters.
// maxPasses <= 0 falls back to 5.
func NewPreprocessor(minSegmentLengthM float64, maxPasses int) *Preprocessor {
	if maxPasses <= 0 {
		maxPasses = 5
	}
	return &Preprocessor{MinSegmentLengthM: minSegmentLengthM, MaxPasses: maxPasses}
}

// Clean runs the cleanup loop until a pass produces no net count change or
// MaxPasses is reached. A pass that empties the population is fatal.
func (p *Preprocessor) Clean(ctx context.Context, trails []models.Trail, summary *models.RunSummary) ([]models.Trail, error) {
	current := trails

	for pass := 1; pass <= p.MaxPasses; pass++ {
		select {
		case <-ctx.Done():
			summary.Cancelled = true
			summary.Record(models.ErrCancelled, "")
			return current, ctx.Err()
		default:
		}

		before := len(current)
		counters := models.PassCounters{Pass: pass}

		current = p.flattenComplex(current, &counters)
		current = p.dropInvalid(current, &counters, summary)
		current = p.repairSelfIntersections(current, &counters)
		current = p.dropEmpty(current, &counters, summary)
		current = p.filterShort(current, &counters, summary)
		current = p.filterType(current, &counters, summary)
		current = p.dropExactDuplicates(current, &counters)

		summary.Passes = append(summary.Passes, counters)
		log.Printf("Preprocess pass %d: %d -> %d trails (flattened=%d invalid=%d repaired=%d short=%d dup=%d)",
			pass, before, len(current), counters.Flattened, counters.Invalid,
			counters.SelfIntersected, counters.TooShort, counters.Duplicates)

		if len(current) == 0 {
			return nil, fmt.Errorf("preprocessing pass %d removed all trails", pass)
		}
		if len(current) == before && counters.NetChange() == 0 {
			break
		}
	}

	return current, nil
}

// flattenComplex replaces multi-part geometries by the line-merge of their
// parts. If more than one piece survives the merge, each piece becomes its
// own trail with a "(Segment N)" name suffix; the first piece keeps the
// parent id.
func (p *Preprocessor) flattenComplex(trails []models.Trail, c *models.PassCounters) []models.Trail {
	var out []models.Trail

	for _, t := range trails {
		if len(t.MultiParts) == 0 {
			out = append(out, t)
			continue
		}

		c.Flattened++
		merged, mergedZ := mergeLines(t.MultiParts, t.MultiElevs)

		for i, piece := range merged {
			nt := t
			nt.MultiParts = nil
			nt.MultiElevs = nil
			nt.Geometry = piece
			nt.Elevations = mergedZ[i]
			nt.LengthKm = geo.LineLengthKm(piece)
			if i > 0 {
				nt.ID = fmt.Sprintf("%s-%d", t.ID, i+1)
				nt.Name = fmt.Sprintf("%s (Segment %d)", t.Name, i+1)
				c.Introduced++
			}
			out = append(out, nt)
		}
	}

	return out
}

// dropInvalid removes trails whose geometry fails validity: non-finite
// coordinates, fewer than 2 vertices, or zero-extent linework
func (p *Preprocessor) dropInvalid(trails []models.Trail, c *models.PassCounters, summary *models.RunSummary) []models.Trail {
	var out []models.Trail
	for _, t := range trails {
		if len(t.MultiParts) > 0 {
			out = append(out, t) // handled by the type filter
			continue
		}
		if !isValid(t.Geometry) {
			c.Invalid++
			summary.Record(models.ErrInvalidInput, t.ID)
			continue
		}
		out = append(out, t)
	}
	return out
}

// repairSelfIntersections node-splits valid-but-not-simple linework at every
// self-intersection. Each resulting piece becomes its own trail; pieces
// shorter than one meter are discarded.
func (p *Preprocessor) repairSelfIntersections(trails []models.Trail, c *models.PassCounters) []models.Trail {
	var out []models.Trail

	for _, t := range trails {
		if len(t.Geometry) < 2 || geo.IsSimple(t.Geometry) {
			out = append(out, t)
			continue
		}

		c.SelfIntersected++
		cuts := selfIntersectionCuts(t.Geometry)
		pieces, piecesZ := splitAtChainages(t.Geometry, t.Elevations, cuts)

		n := 0
		for i, piece := range pieces {
			if geo.LineLengthM(piece) < minPieceM {
				continue
			}
			nt := t
			nt.Geometry = piece
			nt.Elevations = piecesZ[i]
			nt.LengthKm = geo.LineLengthKm(piece)
			if n > 0 {
				nt.ID = fmt.Sprintf("%s-%d", t.ID, n+1)
				nt.Name = fmt.Sprintf("%s (Segment %d)", t.Name, n+1)
				c.Introduced++
			}
			out = append(out, nt)
			n++
		}
	}

	return out
}

func (p *Preprocessor) dropEmpty(trails []models.Trail, c *models.PassCounters, summary *models.RunSummary) []models.Trail {
	var out []models.Trail
	for _, t := range trails {
		if len(t.Geometry) == 0 && len(t.MultiParts) == 0 {
			c.Empty++
			summary.Record(models.ErrInvalidInput, t.ID)
			continue
		}
		out = append(out, t)
	}
	return out
}

// filterShort drops trails shorter than MinSegmentLengthM; with no minimum
// configured it drops geometries with fewer than 2 vertices
func (p *Preprocessor) filterShort(trails []models.Trail, c *models.PassCounters, summary *models.RunSummary) []models.Trail {
	var out []models.Trail
	for _, t := range trails {
		if len(t.MultiParts) > 0 {
			out = append(out, t)
			continue
		}
		if p.MinSegmentLengthM > 0 {
			if geo.LineLengthM(t.Geometry) < p.MinSegmentLengthM {
				c.TooShort++
				summary.Record(models.ErrInvalidInput, t.ID)
				continue
			}
		} else if len(t.Geometry) < 2 {
			c.TooShort++
			summary.Record(models.ErrInvalidInput, t.ID)
			continue
		}
		out = append(out, t)
	}
	return out
}

// filterType keeps only single LineString trails. Anything still carrying
// multi-part geometry at this point failed to flatten and is dropped.
func (p *Preprocessor) filterType(trails []models.Trail, c *models.PassCounters, summary *models.RunSummary) []models.Trail {
	var out []models.Trail
	for _, t := range trails {
		if len(t.MultiParts) > 0 || len(t.Geometry) < 2 {
			c.WrongType++
			summary.Record(models.ErrInvalidInput, t.ID)
			continue
		}
		out = append(out, t)
	}
	return out
}

// dropExactDuplicates removes geometrically equal trails (forward or
// reversed vertex sequence), keeping the one with the lowest id
func (p *Preprocessor) dropExactDuplicates(trails []models.Trail, c *models.PassCounters) []models.Trail {
	sorted := make([]models.Trail, len(trails))
	copy(sorted, trails)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	seen := make(map[string]bool)
	var out []models.Trail

	for _, t := range sorted {
		key := canonicalKey(t.Geometry)
		if seen[key] {
			c.Duplicates++
			continue
		}
		seen[key] = true
		out = append(out, t)
	}

	return out
}

// canonicalKey builds an orientation-independent fingerprint of a linestring
func canonicalKey(ls orb.LineString) string {
	fwd := fingerprint(ls)
	rev, _ := geo.Reverse(ls, nil)
	bwd := fingerprint(rev)
	if bwd < fwd {
		return bwd
	}
	return fwd
}

func fingerprint(ls orb.LineString) string {
	key := ""
	for _, pt := range ls {
		key += fmt.Sprintf("%.9f,%.9f;", pt[0], pt[1])
	}
	return key
}

// isValid checks linestring validity: finite coordinates, at least two
// vertices, and nonzero extent
func isValid(ls orb.LineString) bool {
	if len(ls) < 2 {
		return false
	}
	if !geo.FiniteCoords(ls) {
		return false
	}
	for i := 1; i < len(ls); i++ {
		if ls[i] != ls[0] {
			return true
		}
	}
	return false
}

// selfIntersectionCuts returns the chainages (meters) at which a
// non-simple linestring crosses itself, on both involved segments
func selfIntersectionCuts(ls orb.LineString) []float64 {
	chain := geo.Chainage(ls)
	var cuts []float64

	n := len(ls) - 1
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pts, overlap := geo.SegmentIntersection(ls[i], ls[i+1], ls[j], ls[j+1])
			if !overlap && len(pts) == 0 {
				continue
			}
			for _, pt := range pts {
				// skip the shared vertex of adjacent segments
				if j == i+1 && geo.EquirectM(pt, ls[j]) < 1e-6 {
					continue
				}
				di := chain[i] + geo.EquirectM(ls[i], pt)
				dj := chain[j] + geo.EquirectM(ls[j], pt)
				cuts = append(cuts, di, dj)
			}
		}
	}

	return cuts
}

// splitAtChainages cuts a linestring at the given chainages (meters),
// returning the ordered pieces. Cuts at or beyond the endpoints are ignored.
func splitAtChainages(ls orb.LineString, elevs []float64, cuts []float64) ([]orb.LineString, [][]float64) {
	total := geo.LineLengthM(ls)

	filtered := cuts[:0]
	for _, d := range cuts {
		if d > minPieceM/2 && d < total-minPieceM/2 {
			filtered = append(filtered, d)
		}
	}
	sort.Float64s(filtered)

	// merge cuts closer than a few centimeters
	var merged []float64
	for _, d := range filtered {
		if len(merged) == 0 || d-merged[len(merged)-1] > 0.05 {
			merged = append(merged, d)
		}
	}

	if len(merged) == 0 {
		return []orb.LineString{ls}, [][]float64{elevs}
	}

	bounds := append([]float64{0}, merged...)
	bounds = append(bounds, total)

	var pieces []orb.LineString
	var piecesZ [][]float64
	for i := 0; i < len(bounds)-1; i++ {
		piece, pieceZ := geo.SubLine(ls, elevs, bounds[i], bounds[i+1])
		if len(piece) >= 2 {
			pieces = append(pieces, piece)
			piecesZ = append(piecesZ, pieceZ)
		}
	}

	return pieces, piecesZ
}

// piece pairs a linestring with its elevation sequence during line-merge
type piece struct {
	line orb.LineString
	z    []float64
}

// mergeLines joins linestring parts that share endpoints into maximal
// chains. Parts that cannot be joined stay as separate pieces.
func mergeLines(parts []orb.LineString, elevs [][]float64) ([]orb.LineString, [][]float64) {
	pending := make([]piece, 0, len(parts))
	for i, part := range parts {
		var z []float64
		if i < len(elevs) {
			z = elevs[i]
		}
		if len(z) != len(part) {
			z = make([]float64, len(part))
		}
		pending = append(pending, piece{line: part, z: z})
	}

	var merged []piece
	for len(pending) > 0 {
		cur := pending[0]
		pending = pending[1:]

		joined := true
		for joined {
			joined = false
			for i := 0; i < len(pending); i++ {
				next := pending[i]
				var ok bool
				cur, ok = tryJoin(cur, next)
				if ok {
					pending = append(pending[:i], pending[i+1:]...)
					joined = true
					break
				}
			}
		}
		merged = append(merged, cur)
	}

	lines := make([]orb.LineString, len(merged))
	zs := make([][]float64, len(merged))
	for i, m := range merged {
		lines[i] = m.line
		zs[i] = m.z
	}
	return lines, zs
}

func tryJoin(a, b piece) (piece, bool) {
	if len(a.line) == 0 || len(b.line) == 0 {
		return a, false
	}

	aStart, aEnd := a.line[0], a.line[len(a.line)-1]
	bStart, bEnd := b.line[0], b.line[len(b.line)-1]

	switch {
	case aEnd == bStart:
		a.line = append(a.line, b.line[1:]...)
		a.z = append(a.z, b.z[1:]...)
		return a, true
	case aEnd == bEnd:
		rev, revZ := geo.Reverse(b.line, b.z)
		a.line = append(a.line, rev[1:]...)
		a.z = append(a.z, revZ[1:]...)
		return a, true
	case aStart == bEnd:
		a.line = append(b.line, a.line[1:]...)
		a.z = append(b.z, a.z[1:]...)
		return a, true
	case aStart == bStart:
		rev, revZ := geo.Reverse(b.line, b.z)
		a.line = append(rev, a.line[1:]...)
		a.z = append(revZ, a.z[1:]...)
		return a, true
	}

	return a, false
}
