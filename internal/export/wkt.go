package export

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// EncodeLineStringZ renders a linestring with per-vertex elevation as
// "LINESTRING Z(x y z, ...)" WKT. Missing elevation entries encode as 0.
func EncodeLineStringZ(line orb.LineString, elevs []float64) string {
	if len(line) == 0 {
		return "LINESTRING Z EMPTY"
	}

	parts := make([]string, len(line))
	for i, p := range line {
		z := 0.0
		if i < len(elevs) {
			z = elevs[i]
		}
		parts[i] = fmt.Sprintf("%g %g %g", p[0], p[1], z)
	}

	return fmt.Sprintf("LINESTRING Z(%s)", strings.Join(parts, ", "))
}

// EncodeMultiLineStringZ renders several legs as a 3D MultiLineString
func EncodeMultiLineStringZ(lines []orb.LineString, elevs [][]float64) string {
	if len(lines) == 0 {
		return "MULTILINESTRING Z EMPTY"
	}

	legs := make([]string, len(lines))
	for li, line := range lines {
		var z []float64
		if li < len(elevs) {
			z = elevs[li]
		}
		parts := make([]string, len(line))
		for i, p := range line {
			zi := 0.0
			if i < len(z) {
				zi = z[i]
			}
			parts[i] = fmt.Sprintf("%g %g %g", p[0], p[1], zi)
		}
		legs[li] = fmt.Sprintf("(%s)", strings.Join(parts, ", "))
	}

	return fmt.Sprintf("MULTILINESTRING Z(%s)", strings.Join(legs, ", "))
}

// EncodePointZ renders a 3D point as WKT
func EncodePointZ(p orb.Point, z float64) string {
	return fmt.Sprintf("POINT Z(%g %g %g)", p[0], p[1], z)
}
