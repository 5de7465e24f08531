/*
Copyright © 2026 the InMAP authors.
This file is part of Regrid.

Regrid is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Regrid is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Regrid.  If not, see <http://www.gnu.org/licenses/>.
*/

package regrid

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
)

// ConfigError reports an unsupported configuration (e.g. a method/topology
// combination the generator cannot serve). It is always raised at
// construction, never at apply time.
type ConfigError struct {
	Reason string
}

func (e ConfigError) Error() string { return "regrid: configuration: " + e.Reason }

// GeneratorSpec carries the policy options a generator needs in addition to
// the two mesh descriptions.
type GeneratorSpec struct {
	Method             Method
	Periodic           bool
	ExtrapMethod       ExtrapMethod
	ExtrapDistExponent float64
}

// WeightGenerator computes an interpolation operator from two mesh
// descriptions. Implementations must be safe for concurrent use.
type WeightGenerator interface {
	Generate(src, dst *MeshInfo, spec GeneratorSpec) (*Operator, error)
}

// DefaultGenerator is the builtin weight generator. It serves a subset of
// the method/topology space; richer generators can be injected through
// Options.Generator.
var DefaultGenerator WeightGenerator = gridGenerator{}

type gridGenerator struct{}

func (g gridGenerator) Generate(src, dst *MeshInfo, spec GeneratorSpec) (*Operator, error) {
	var op *Operator
	var err error
	switch spec.Method {
	case Bilinear, Patch:
		// The builtin generator serves patch requests with the bilinear
		// stencil; true patch recovery is generator-specific.
		op, err = bilinearWeights(src, dst, spec.Periodic)
	case Conservative:
		op, err = conservativeWeights(src, dst, spec.Periodic)
	case NearestS2D:
		op, err = nearestS2DWeights(src, dst)
	case NearestD2S:
		op, err = nearestD2SWeights(src, dst)
	default:
		return nil, ConfigError{Reason: fmt.Sprintf("unknown method %q", spec.Method)}
	}
	if err != nil {
		return nil, err
	}
	if spec.ExtrapMethod != ExtrapNone {
		if err := extrapolate(op, src, dst, spec); err != nil {
			return nil, err
		}
	}
	sortTriplets(op)
	if err := op.check(); err != nil {
		return nil, err
	}
	return op, nil
}

// cellCenters returns flattened cell-center coordinates for any topology, in
// the flattening order of the mesh's dimension names.
func cellCenters(m *MeshInfo) (lat, lon []float64) {
	if m.Topology != Rectilinear {
		return m.Lat, m.Lon
	}
	n := len(m.Lat) * len(m.Lon)
	lat = make([]float64, 0, n)
	lon = make([]float64, 0, n)
	for _, la := range m.Lat {
		for _, lo := range m.Lon {
			lat = append(lat, la)
			lon = append(lon, lo)
		}
	}
	return lat, lon
}

// axis is an ascending view of a possibly descending 1-D coordinate axis.
type axis struct {
	v   []float64 // ascending values
	idx []int     // original index of each ascending value
}

func newAxis(v []float64) axis {
	a := axis{v: make([]float64, len(v)), idx: make([]int, len(v))}
	copy(a.v, v)
	for i := range a.idx {
		a.idx[i] = i
	}
	sort.Sort(&a)
	return a
}

func (a *axis) Len() int           { return len(a.v) }
func (a *axis) Less(i, j int) bool { return a.v[i] < a.v[j] }
func (a *axis) Swap(i, j int) {
	a.v[i], a.v[j] = a.v[j], a.v[i]
	a.idx[i], a.idx[j] = a.idx[j], a.idx[i]
}

// bracket finds the interval [v[j], v[j+1]] containing x and the fractional
// position t of x within it. ok is false when x lies outside the axis.
func (a *axis) bracket(x float64) (j int, t float64, ok bool) {
	n := len(a.v)
	if n < 2 || x < a.v[0] || x > a.v[n-1] {
		return 0, 0, false
	}
	j = sort.SearchFloat64s(a.v, x)
	if j < n && a.v[j] == x {
		if j == n-1 {
			return j - 1, 1, true
		}
		return j, 0, true
	}
	j--
	t = (x - a.v[j]) / (a.v[j+1] - a.v[j])
	return j, t, true
}

// bilinearWeights computes separable linear interpolation weights from a
// rectilinear source grid to arbitrary destination points.
func bilinearWeights(src, dst *MeshInfo, periodic bool) (*Operator, error) {
	if src.Topology != Rectilinear {
		return nil, ConfigError{Reason: fmt.Sprintf("bilinear interpolation requires a rectilinear source grid; source is %s", src.Topology)}
	}
	latAx := newAxis(src.Lat)
	nLon := len(src.Lon)
	dstLat, dstLon := cellCenters(dst)

	op := &Operator{NSrc: src.Size(), NDst: dst.Size()}
	for i := range dstLat {
		jLat, tLat, okLat := latAx.bracket(dstLat[i])
		if !okLat {
			continue
		}
		k0, k1, tLon, okLon := lonBracket(src.Lon, dstLon[i], periodic)
		if !okLon {
			continue
		}
		r0 := latAx.idx[jLat]
		r1 := latAx.idx[jLat+1]
		add := func(row int, latIdx, lonIdx int, w float64) {
			if w == 0 {
				return
			}
			op.Row = append(op.Row, int32(row))
			op.Col = append(op.Col, int32(latIdx*nLon+lonIdx))
			op.S = append(op.S, w)
		}
		add(i, r0, k0, (1-tLat)*(1-tLon))
		add(i, r0, k1, (1-tLat)*tLon)
		add(i, r1, k0, tLat*(1-tLon))
		add(i, r1, k1, tLat*tLon)
	}
	return op, nil
}

// lonBracket locates the source longitude interval containing x, wrapping
// across the seam when the grid is periodic.
func lonBracket(lon []float64, x float64, periodic bool) (k0, k1 int, t float64, ok bool) {
	ax := newAxis(lon)
	n := len(ax.v)
	if n < 2 {
		return 0, 0, 0, false
	}
	if periodic {
		// Normalize x into [lon0, lon0+360).
		for x < ax.v[0] {
			x += 360
		}
		for x >= ax.v[0]+360 {
			x -= 360
		}
		if x > ax.v[n-1] {
			// Between the last and (wrapped) first cell center.
			span := ax.v[0] + 360 - ax.v[n-1]
			t = (x - ax.v[n-1]) / span
			return ax.idx[n-1], ax.idx[0], t, true
		}
	}
	j, t, okB := ax.bracket(x)
	if !okB {
		return 0, 0, 0, false
	}
	return ax.idx[j], ax.idx[j+1], t, true
}

// conservativeWeights computes first-order area-overlap weights. Supported
// combinations: rectilinear source to rectilinear destination, and
// face-connected mesh source to rectilinear destination.
func conservativeWeights(src, dst *MeshInfo, periodic bool) (*Operator, error) {
	if dst.Topology != Rectilinear || dst.LatBounds == nil || dst.LonBounds == nil {
		return nil, ConfigError{Reason: fmt.Sprintf("conservative interpolation requires a rectilinear destination grid with cell bounds; destination is %s", dst.Topology)}
	}
	switch src.Topology {
	case Rectilinear:
		if src.LatBounds == nil || src.LonBounds == nil {
			return nil, ConfigError{Reason: "conservative interpolation requires source cell bounds"}
		}
		return conservativeRectRect(src, dst, periodic)
	case Mesh:
		if src.Conn == nil {
			return nil, ConfigError{Reason: "conservative interpolation over an unstructured source requires face-node connectivity"}
		}
		return conservativeMeshRect(src, dst)
	default:
		return nil, ConfigError{Reason: fmt.Sprintf("conservative interpolation is not supported for a %s source without connectivity", src.Topology)}
	}
}

func conservativeRectRect(src, dst *MeshInfo, periodic bool) (*Operator, error) {
	nSrcLon := len(src.Lon)
	nDstLon := len(dst.Lon)
	op := &Operator{NSrc: src.Size(), NDst: dst.Size()}

	// Spherical cell areas factor into a sin(lat) band times a longitude
	// span, so the two axes can be overlapped independently.
	type overlap struct {
		idx int
		w   float64
	}
	latOv := make([][]overlap, len(dst.Lat))
	for i := range dst.Lat {
		d0, d1 := sinDeg(dst.LatBounds[i]), sinDeg(dst.LatBounds[i+1])
		if d1 < d0 {
			d0, d1 = d1, d0
		}
		for j := range src.Lat {
			s0, s1 := sinDeg(src.LatBounds[j]), sinDeg(src.LatBounds[j+1])
			if s1 < s0 {
				s0, s1 = s1, s0
			}
			if w := intervalOverlap(d0, d1, s0, s1); w > 0 {
				latOv[i] = append(latOv[i], overlap{j, w / (d1 - d0)})
			}
		}
	}
	lonOv := make([][]overlap, len(dst.Lon))
	for i := range dst.Lon {
		d0, d1 := dst.LonBounds[i], dst.LonBounds[i+1]
		if d1 < d0 {
			d0, d1 = d1, d0
		}
		for j := range src.Lon {
			s0, s1 := src.LonBounds[j], src.LonBounds[j+1]
			if s1 < s0 {
				s0, s1 = s1, s0
			}
			w := intervalOverlap(d0, d1, s0, s1)
			if periodic {
				w += intervalOverlap(d0, d1, s0-360, s1-360)
				w += intervalOverlap(d0, d1, s0+360, s1+360)
			}
			if w > 0 {
				lonOv[i] = append(lonOv[i], overlap{j, w / (d1 - d0)})
			}
		}
	}
	for i := range dst.Lat {
		for k := range dst.Lon {
			row := i*nDstLon + k
			for _, lo := range latOv[i] {
				for _, oo := range lonOv[k] {
					op.Row = append(op.Row, int32(row))
					op.Col = append(op.Col, int32(lo.idx*nSrcLon+oo.idx))
					op.S = append(op.S, lo.w*oo.w)
				}
			}
		}
	}
	return op, nil
}

func conservativeMeshRect(src, dst *MeshInfo) (*Operator, error) {
	tris, faceOf := src.Conn.Triangulate()
	triPolys := make([]geom.Polygon, len(tris))
	for i, tri := range tris {
		triPolys[i] = geom.Polygon{{
			{X: src.Conn.NodeLon[tri[0]], Y: src.Conn.NodeLat[tri[0]]},
			{X: src.Conn.NodeLon[tri[1]], Y: src.Conn.NodeLat[tri[1]]},
			{X: src.Conn.NodeLon[tri[2]], Y: src.Conn.NodeLat[tri[2]]},
			{X: src.Conn.NodeLon[tri[0]], Y: src.Conn.NodeLat[tri[0]]},
		}}
	}

	nDstLon := len(dst.Lon)
	op := &Operator{NSrc: src.Size(), NDst: dst.Size()}
	for i := range dst.Lat {
		for k := range dst.Lon {
			cell := geom.Polygon{{
				{X: dst.LonBounds[k], Y: dst.LatBounds[i]},
				{X: dst.LonBounds[k+1], Y: dst.LatBounds[i]},
				{X: dst.LonBounds[k+1], Y: dst.LatBounds[i+1]},
				{X: dst.LonBounds[k], Y: dst.LatBounds[i+1]},
				{X: dst.LonBounds[k], Y: dst.LatBounds[i]},
			}}
			cellArea := cell.Area()
			if cellArea == 0 {
				continue
			}
			byFace := make(map[int]float64)
			for t, tp := range triPolys {
				a := cell.Intersection(tp).Area()
				if a > 0 {
					byFace[faceOf[t]] += a
				}
			}
			row := i*nDstLon + k
			for _, f := range sortedIntKeys(byFace) {
				op.Row = append(op.Row, int32(row))
				op.Col = append(op.Col, int32(f))
				op.S = append(op.S, byFace[f]/cellArea)
			}
		}
	}
	return op, nil
}

func nearestS2DWeights(src, dst *MeshInfo) (*Operator, error) {
	srcLat, srcLon := cellCenters(src)
	dstLat, dstLon := cellCenters(dst)
	op := &Operator{NSrc: src.Size(), NDst: dst.Size()}
	for i := range dstLat {
		j := nearestPoint(srcLat, srcLon, dstLat[i], dstLon[i])
		if j < 0 {
			continue
		}
		op.Row = append(op.Row, int32(i))
		op.Col = append(op.Col, int32(j))
		op.S = append(op.S, 1)
	}
	return op, nil
}

// nearestD2SWeights maps every source point onto its nearest destination, so
// a destination cell may sum several sources.
func nearestD2SWeights(src, dst *MeshInfo) (*Operator, error) {
	srcLat, srcLon := cellCenters(src)
	dstLat, dstLon := cellCenters(dst)
	op := &Operator{NSrc: src.Size(), NDst: dst.Size()}
	for j := range srcLat {
		i := nearestPoint(dstLat, dstLon, srcLat[j], srcLon[j])
		if i < 0 {
			continue
		}
		op.Row = append(op.Row, int32(i))
		op.Col = append(op.Col, int32(j))
		op.S = append(op.S, 1)
	}
	return op, nil
}

// extrapolate fills destination rows with zero total weight according to the
// extrapolation policy.
func extrapolate(op *Operator, src, dst *MeshInfo, spec GeneratorSpec) error {
	switch spec.ExtrapMethod {
	case ExtrapNearestS2D, ExtrapNearestIDW:
	case ExtrapCreepFill:
		return ConfigError{Reason: "creep_fill extrapolation is not supported by the builtin generator"}
	default:
		return ConfigError{Reason: fmt.Sprintf("unknown extrapolation method %q", spec.ExtrapMethod)}
	}

	totals := op.TotalWeights()
	srcLat, srcLon := cellCenters(src)
	dstLat, dstLon := cellCenters(dst)
	for i, t := range totals {
		if t != 0 {
			continue
		}
		if spec.ExtrapMethod == ExtrapNearestS2D {
			j := nearestPoint(srcLat, srcLon, dstLat[i], dstLon[i])
			if j < 0 {
				continue
			}
			op.Row = append(op.Row, int32(i))
			op.Col = append(op.Col, int32(j))
			op.S = append(op.S, 1)
			continue
		}
		idx, dist := kNearest(srcLat, srcLon, dstLat[i], dstLon[i], 8)
		if len(idx) == 0 {
			continue
		}
		p := spec.ExtrapDistExponent
		if p == 0 {
			p = 2
		}
		w := make([]float64, len(idx))
		var sum float64
		exact := -1
		for k, d := range dist {
			if d == 0 {
				exact = k
				break
			}
			w[k] = 1 / math.Pow(d, p/2) // dist is squared chord distance
			sum += w[k]
		}
		if exact >= 0 {
			op.Row = append(op.Row, int32(i))
			op.Col = append(op.Col, int32(idx[exact]))
			op.S = append(op.S, 1)
			continue
		}
		for k := range idx {
			op.Row = append(op.Row, int32(i))
			op.Col = append(op.Col, int32(idx[k]))
			op.S = append(op.S, w[k]/sum)
		}
	}
	return nil
}

// nearestPoint returns the index of the point nearest (lat, lon) by chord
// distance on the unit sphere, or -1 for an empty set.
func nearestPoint(lats, lons []float64, lat, lon float64) int {
	x, y, z := sphereXYZ(lat, lon)
	best := -1
	bestD := math.Inf(1)
	for j := range lats {
		xj, yj, zj := sphereXYZ(lats[j], lons[j])
		d := (x-xj)*(x-xj) + (y-yj)*(y-yj) + (z-zj)*(z-zj)
		if d < bestD {
			bestD = d
			best = j
		}
	}
	return best
}

// kNearest returns the indices and squared chord distances of the k nearest
// points, nearest first.
func kNearest(lats, lons []float64, lat, lon float64, k int) ([]int, []float64) {
	x, y, z := sphereXYZ(lat, lon)
	type cand struct {
		idx int
		d   float64
	}
	cands := make([]cand, len(lats))
	for j := range lats {
		xj, yj, zj := sphereXYZ(lats[j], lons[j])
		cands[j] = cand{j, (x-xj)*(x-xj) + (y-yj)*(y-yj) + (z-zj)*(z-zj)}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].d != cands[j].d {
			return cands[i].d < cands[j].d
		}
		return cands[i].idx < cands[j].idx
	})
	if k > len(cands) {
		k = len(cands)
	}
	idx := make([]int, k)
	dist := make([]float64, k)
	for i := 0; i < k; i++ {
		idx[i] = cands[i].idx
		dist[i] = cands[i].d
	}
	return idx, dist
}

func sphereXYZ(lat, lon float64) (x, y, z float64) {
	la := lat * math.Pi / 180
	lo := lon * math.Pi / 180
	return math.Cos(la) * math.Cos(lo), math.Cos(la) * math.Sin(lo), math.Sin(la)
}

func sinDeg(x float64) float64 { return math.Sin(x * math.Pi / 180) }

func intervalOverlap(a0, a1, b0, b1 float64) float64 {
	lo := math.Max(a0, b0)
	hi := math.Min(a1, b1)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// sortTriplets orders an operator's triplets by row then column so that
// generation is deterministic and save/load round-trips are bit-identical.
func sortTriplets(op *Operator) {
	ord := make([]int, len(op.S))
	for i := range ord {
		ord[i] = i
	}
	sort.SliceStable(ord, func(i, j int) bool {
		if op.Row[ord[i]] != op.Row[ord[j]] {
			return op.Row[ord[i]] < op.Row[ord[j]]
		}
		return op.Col[ord[i]] < op.Col[ord[j]]
	})
	row := make([]int32, len(ord))
	col := make([]int32, len(ord))
	s := make([]float64, len(ord))
	for i, o := range ord {
		row[i], col[i], s[i] = op.Row[o], op.Col[o], op.S[o]
	}
	op.Row, op.Col, op.S = row, col, s
}

func sortedIntKeys(m map[int]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
