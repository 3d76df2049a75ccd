// Package features reduces raw per-node recordings to fixed-size feature
// vectors for misbehavior classification.
package features

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/picogrid/v2v-simulations/pkg/config"
	"github.com/picogrid/v2v-simulations/pkg/geometry"
	"github.com/picogrid/v2v-simulations/pkg/node"
)

// Header is the first row of every processed file.
var Header = []string{"Avg Dist", "Avg Ratio", "BSM Angle", "Slope Dif", "Avg Dif", "Type"}

// Vector is the feature set of one window.
type Vector struct {
	AvgDist  float64
	AvgRatio float64
	BSMAngle float64
	SlopeDif float64
	AvgDif   float64
	Label    node.Category
}

// Record formats the vector as a CSV row matching Header.
func (v Vector) Record() []string {
	return []string{
		formatFloat(v.AvgDist),
		formatFloat(v.AvgRatio),
		formatFloat(v.BSMAngle),
		formatFloat(v.SlopeDif),
		formatFloat(v.AvgDif),
		strconv.Itoa(v.Label.Code()),
	}
}

// Windows splits rows into consecutive non-overlapping windows of size
// rows. Trailing rows that do not fill a window are dropped.
func Windows(rows []node.Row, size int) [][]node.Row {
	if size <= 0 {
		return nil
	}
	out := make([][]node.Row, 0, len(rows)/size)
	for i := 0; i+size <= len(rows); i += size {
		out = append(out, rows[i:i+size])
	}
	return out
}

// Extract computes one vector per full window.
func Extract(rows []node.Row, size int, label node.Category) ([]Vector, error) {
	if size < config.MinSampleSize {
		return nil, fmt.Errorf("%w: sample size %d is below %d", config.ErrInvalid, size, config.MinSampleSize)
	}
	windows := Windows(rows, size)
	out := make([]Vector, 0, len(windows))
	for _, w := range windows {
		out = append(out, FromWindow(w, label))
	}
	return out, nil
}

// FromWindow computes the feature vector of a single window. The window
// must hold at least three rows.
func FromWindow(rows []node.Row, label node.Category) Vector {
	return Vector{
		AvgDist:  avgDistance(rows),
		AvgRatio: avgRatio(rows),
		BSMAngle: avgBeaconAngle(rows),
		SlopeDif: beaconSlope(rows),
		AvgDif:   avgDifference(rows),
		Label:    label,
	}
}

// avgDistance is the mean distance between true and beacon position.
func avgDistance(rows []node.Row) float64 {
	d := make([]float64, len(rows))
	for i, r := range rows {
		d[i] = geometry.Distance(r.Position, r.Beacon)
	}
	return stat.Mean(d, nil)
}

// avgRatio is the mean of true step length over beacon step length.
// Steps where the beacon did not move are skipped.
func avgRatio(rows []node.Row) float64 {
	var ratios []float64
	for i := 0; i+1 < len(rows); i++ {
		beaconStep := geometry.Distance(rows[i].Beacon, rows[i+1].Beacon)
		if beaconStep == 0 {
			continue
		}
		ratios = append(ratios, geometry.Distance(rows[i].Position, rows[i+1].Position)/beaconStep)
	}
	if len(ratios) == 0 {
		return 0
	}
	return stat.Mean(ratios, nil)
}

// avgBeaconAngle is the mean angle in degrees at the middle point of each
// consecutive beacon triple. Triples with a repeated point have no angle
// and are skipped.
func avgBeaconAngle(rows []node.Row) float64 {
	var angles []float64
	for i := 0; i+2 < len(rows); i++ {
		u := rows[i].Beacon.Sub(rows[i+1].Beacon)
		v := rows[i+2].Beacon.Sub(rows[i+1].Beacon)
		if a, ok := angleBetween(u, v); ok {
			angles = append(angles, a)
		}
	}
	if len(angles) == 0 {
		return 0
	}
	return stat.Mean(angles, nil)
}

func angleBetween(u, v geometry.Point) (float64, bool) {
	nu, nv := u.Norm(), v.Norm()
	if nu == 0 || nv == 0 {
		return 0, false
	}
	cos := u.Dot(v) / (nu * nv)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi, true
}

// beaconSlope is the absolute slope of the least squares fit of beacon y
// on beacon x. When the true track is vertical the axes are swapped.
func beaconSlope(rows []node.Row) float64 {
	trueX := make([]float64, len(rows))
	bx := make([]float64, len(rows))
	by := make([]float64, len(rows))
	for i, r := range rows {
		trueX[i] = r.Position.X
		bx[i] = r.Beacon.X
		by[i] = r.Beacon.Y
	}

	if floats.Max(trueX) == floats.Min(trueX) {
		bx, by = by, bx
	}
	if stat.Variance(bx, nil) == 0 {
		return 0
	}

	_, beta := stat.LinearRegression(bx, by, nil, false)
	return math.Abs(beta)
}

// avgDifference averages |dx| and |dy| between true and beacon positions
// over both axes.
func avgDifference(rows []node.Row) float64 {
	d := make([]float64, 0, 2*len(rows))
	for _, r := range rows {
		d = append(d, math.Abs(r.Position.X-r.Beacon.X), math.Abs(r.Position.Y-r.Beacon.Y))
	}
	return floats.Sum(d) / float64(len(d))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
