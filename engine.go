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
	"log"
	"math"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/gonum/floats"
)

// ShapeError reports that an input array's spatial shape disagrees with the
// resident operator. The input is left untouched.
type ShapeError struct {
	Want, Have []int
}

func (e ShapeError) Error() string {
	return fmt.Sprintf("regrid: source spatial shape %s does not match the weight source shape %s", intTuple(e.Have), intTuple(e.Want))
}

// Options configures a Regridder. The zero value selects bilinear
// interpolation with auto-detected periodicity and no extrapolation.
type Options struct {
	// Method is the interpolation method; Bilinear when empty.
	Method Method

	// Periodic sets longitude periodicity explicitly; when nil it is
	// auto-detected from the source grid.
	Periodic *bool

	// ExtrapMethod extrapolates destination cells outside the source
	// domain; ExtrapDistExponent is its inverse-distance exponent
	// (default 2).
	ExtrapMethod       ExtrapMethod
	ExtrapDistExponent float64

	// SkipNA enables NaN-aware renormalization. NAThreshold is the maximum
	// tolerated missing weight fraction; when nil it defaults to 1. An
	// explicit zero marks any destination with missing weight as NaN.
	SkipNA      bool
	NAThreshold *float64

	// Filename, when set, is where generated weights are persisted. With
	// ReuseWeights, an existing file is loaded and validated instead of
	// regenerating.
	Filename     string
	ReuseWeights bool

	// Generator computes weights when none are reused; DefaultGenerator
	// when nil.
	Generator WeightGenerator

	// Cache is the process-local operator cache used by chunked
	// application; a private cache is created when nil.
	Cache *WorkerCache

	// Workers bounds the concurrency of ApplyChunked; GOMAXPROCS when zero.
	Workers int
}

// Regridder applies a precomputed sparse interpolation operator to labeled
// arrays. It is immutable after construction and safe for concurrent use.
type Regridder struct {
	desc   *WeightDescriptor
	totals []float64

	skipNA      bool
	naThreshold float64

	// Target metadata reattached to outputs.
	targetCoords     map[string]*DataArray
	gridMappingName  string
	gridMappingVar   *DataArray
	targetMeshName   string
	targetMeshVar    *DataArray
	targetMeshKnown  bool
	cache            *WorkerCache
	workers          int

	reportOnce sync.Once
	report     *Report
}

// NewRegridder builds a regridding engine between the source and target
// grids. All weight generation and file I/O happens here; Apply never
// blocks on I/O.
func NewRegridder(src, dst *Dataset, o Options) (*Regridder, error) {
	if o.Method == "" {
		o.Method = Bilinear
	}
	naThreshold := 1.0
	if o.NAThreshold != nil {
		naThreshold = *o.NAThreshold
	}

	srcMesh, err := DescribeGrid(src)
	if err != nil {
		return nil, fmt.Errorf("regrid: describing source grid: %w", err)
	}
	dstMesh, err := DescribeGrid(dst)
	if err != nil {
		return nil, fmt.Errorf("regrid: describing target grid: %w", err)
	}

	periodic := srcMesh.Periodic
	if o.Periodic != nil {
		periodic = *o.Periodic
	}

	want := &WeightDescriptor{
		Method:             o.Method,
		Periodic:           periodic,
		ExtrapMethod:       o.ExtrapMethod,
		ExtrapDistExponent: o.ExtrapDistExponent,
		ShapeSource:        srcMesh.Shape,
		ShapeTarget:        dstMesh.Shape,
		DimsSource:         srcMesh.DimNames,
		DimsTarget:         dstMesh.DimNames,
	}

	var desc *WeightDescriptor
	if o.ReuseWeights && o.Filename != "" && fileExists(o.Filename) {
		loaded, err := LoadWeights(o.Filename)
		if err != nil {
			return nil, err
		}
		if err := validateReuse(loaded, want); err != nil {
			return nil, err
		}
		desc = loaded
	} else {
		gen := o.Generator
		if gen == nil {
			gen = DefaultGenerator
		}
		op, err := gen.Generate(srcMesh, dstMesh, GeneratorSpec{
			Method:             o.Method,
			Periodic:           periodic,
			ExtrapMethod:       o.ExtrapMethod,
			ExtrapDistExponent: o.ExtrapDistExponent,
		})
		if err != nil {
			return nil, err
		}
		if op.NSrc != srcMesh.Size() || op.NDst != dstMesh.Size() {
			return nil, fmt.Errorf("regrid: generator returned a %d×%d operator for a %d×%d problem",
				op.NDst, op.NSrc, dstMesh.Size(), srcMesh.Size())
		}
		want.Op = op
		desc = want
		if o.Filename != "" {
			if err := SaveWeights(o.Filename, desc); err != nil {
				return nil, err
			}
		}
	}

	r := &Regridder{
		desc:        desc,
		totals:      desc.Op.TotalWeights(),
		skipNA:      o.SkipNA,
		naThreshold: naThreshold,
		cache:       o.Cache,
		workers:     o.Workers,
	}
	if r.cache == nil {
		r.cache = NewWorkerCache(0)
	}
	if r.workers <= 0 {
		r.workers = runtime.GOMAXPROCS(0)
	}

	// Target spatial coordinates, reattached to every output.
	r.targetCoords = make(map[string]*DataArray)
	spatial := make(map[string]bool)
	for _, d := range desc.DimsTarget {
		spatial[d] = true
	}
	for name, c := range dst.Coords {
		ok := len(c.Dims) > 0
		for _, d := range c.Dims {
			if !spatial[d] {
				ok = false
			}
		}
		if ok {
			r.targetCoords[name] = c
		}
	}
	// Target projection variable, substituted for the source's in
	// grid_mapping hygiene.
	for _, a := range dst.allArrays() {
		if _, ok := a.Attrs["grid_mapping_name"]; ok {
			r.gridMappingName = a.Name
			r.gridMappingVar = a
			break
		}
	}
	// Target UGRID topology holder, if the target is itself a mesh.
	for _, a := range dst.allArrays() {
		if a.AttrString("cf_role") == "mesh_topology" {
			r.targetMeshName = a.Name
			r.targetMeshVar = a
			r.targetMeshKnown = true
			break
		}
	}

	return r, nil
}

// Weights returns the engine's weight descriptor.
func (r *Regridder) Weights() *WeightDescriptor { return r.desc }

// applyState tracks coordinate transforms within one top-level call so that
// mutually cross-referencing coordinates terminate without infinite descent.
type applyState struct {
	memo     map[*DataArray]*DataArray
	inflight map[*DataArray]bool
}

func newApplyState() *applyState {
	return &applyState{
		memo:     make(map[*DataArray]*DataArray),
		inflight: make(map[*DataArray]bool),
	}
}

// Apply regrids one labeled array. Arrays without the engine's spatial
// dimensions are returned unchanged, so the engine can be applied generically
// to every member of a dataset.
func (r *Regridder) Apply(da *DataArray) (*DataArray, error) {
	return r.apply(da, newApplyState())
}

func (r *Regridder) apply(da *DataArray, st *applyState) (*DataArray, error) {
	spatial, ok := r.findSpatialDims(da)
	if !ok {
		return da, nil
	}

	// Shape check happens before any data is touched.
	have := make([]int, len(spatial))
	for i, d := range spatial {
		have[i] = da.Size(d)
	}
	if !equalInts(have, r.desc.ShapeSource) {
		return nil, ShapeError{Want: r.desc.ShapeSource, Have: have}
	}

	data, err := da.Values()
	if err != nil {
		return nil, err
	}

	// Move spatial dims to the trailing positions, batch dims keeping their
	// order, and flatten the trailing axes into one synthetic source axis.
	isSpatial := make(map[string]bool, len(spatial))
	for _, d := range spatial {
		isSpatial[d] = true
	}
	var batchDims []string
	var perm []int
	batchShape := []int{}
	for i, d := range da.Dims {
		if !isSpatial[d] {
			batchDims = append(batchDims, d)
			batchShape = append(batchShape, data.Shape[i])
			perm = append(perm, i)
		}
	}
	for _, d := range spatial {
		for i, dd := range da.Dims {
			if dd == d {
				perm = append(perm, i)
			}
		}
	}
	tr := transposeDense(data, perm)
	nBatch := prodInts(batchShape)

	out := applyOperator(r.desc.Op, r.totals, tr.Elements, nBatch, r.skipNA, r.naThreshold)
	outShape := append(append([]int{}, batchShape...), r.desc.ShapeTarget...)
	outArr := reshapeDense(out, outShape)

	outDims := append(append([]string{}, batchDims...), r.desc.DimsTarget...)
	res := da.copyMeta(outDims, outArr)

	r.transformCoords(da, res, isSpatial, st)
	r.rewriteProjection(res)
	r.rewriteMeshAttrs(res)
	res.Attrs["history"] = r.historyLine() + historyTail(da.AttrString("history"))
	return res, nil
}

// transformCoords carries the input's coordinates over to the output:
// non-spatial coordinates unchanged, spatial auxiliary coordinates through
// the engine itself, and the target grid's own coordinates on top.
func (r *Regridder) transformCoords(da, res *DataArray, isSpatial map[string]bool, st *applyState) {
	for name, c := range da.Coords {
		touchesSpatial := false
		for _, d := range c.Dims {
			if isSpatial[d] {
				touchesSpatial = true
			}
		}
		if !touchesSpatial {
			res.Coords[name] = c
			continue
		}
		if st.inflight[c] {
			continue // cycle; the coordinate is handled higher up the stack
		}
		if m, ok := st.memo[c]; ok {
			if m != nil {
				res.Coords[name] = m
			}
			continue
		}
		st.inflight[c] = true
		rc, err := r.apply(c, st)
		delete(st.inflight, c)
		switch {
		case err != nil:
			// A failed secondary transform must not sink the primary one.
			log.Printf("regrid: dropping coordinate %q: %v", name, err)
			st.memo[c] = nil
		case rc == c:
			// Pass-through means the coordinate spans only part of the
			// source's spatial dims (e.g. a bare axis vector); the target
			// grid supplies its replacement.
			st.memo[c] = nil
		default:
			st.memo[c] = rc
			res.Coords[name] = rc
		}
	}
	for name, c := range r.targetCoords {
		res.Coords[name] = c
	}
}

// rewriteProjection points a projection-reference attribute at the target's
// own projection variable, or drops it if the target has none.
func (r *Regridder) rewriteProjection(res *DataArray) {
	gm := res.AttrString("grid_mapping")
	if gm == "" {
		return
	}
	delete(res.Coords, gm)
	if r.gridMappingName == "" {
		delete(res.Attrs, "grid_mapping")
		return
	}
	res.Attrs["grid_mapping"] = r.gridMappingName
	res.Coords[r.gridMappingName] = r.gridMappingVar
}

// rewriteMeshAttrs updates UGRID mesh references: pointed at the target's
// topology holder when the target is a mesh, removed otherwise.
func (r *Regridder) rewriteMeshAttrs(res *DataArray) {
	if res.AttrString("mesh") == "" {
		return
	}
	if !r.targetMeshKnown {
		delete(res.Attrs, "mesh")
		delete(res.Attrs, "location")
		return
	}
	res.Attrs["mesh"] = r.targetMeshName
	res.Coords[r.targetMeshName] = r.targetMeshVar
}

func (r *Regridder) historyLine() string {
	d := r.desc
	line := fmt.Sprintf("%s: Regridded using regrid (method=%s, periodic=%t, skipna=%t",
		time.Now().Format("2006-01-02 15:04:05"), d.Method, d.Periodic, r.skipNA)
	if r.skipNA {
		line += fmt.Sprintf(", na_thres=%g", r.naThreshold)
	}
	if d.ExtrapMethod != ExtrapNone {
		line += fmt.Sprintf(", extrap_method=%s, extrap_dist_exponent=%g", d.ExtrapMethod, d.ExtrapDistExponent)
	}
	return line + ")"
}

func historyTail(old string) string {
	if old == "" {
		return ""
	}
	return "\n" + old
}

// ApplyDataset regrids every member of a dataset, passing non-spatial
// members through unchanged. A dataset with no regriddable members is not an
// error.
func (r *Regridder) ApplyDataset(ds *Dataset) (*Dataset, error) {
	st := newApplyState()
	out := newOutputDataset(ds)
	for _, name := range sortedKeys(ds.Vars) {
		v := ds.Vars[name]
		if isGridPlumbing(v) {
			continue
		}
		rv, err := r.apply(v, st)
		if err != nil {
			return nil, fmt.Errorf("regrid: variable %s: %w", name, err)
		}
		out.Vars[name] = rv
	}
	r.finishDataset(ds, out)
	return out, nil
}

// isGridPlumbing reports members that must not be regridded: projection
// holders and UGRID topology variables, which the target grid replaces.
func isGridPlumbing(v *DataArray) bool {
	if _, ok := v.Attrs["grid_mapping_name"]; ok {
		return true
	}
	return v.AttrString("cf_role") != ""
}

func newOutputDataset(ds *Dataset) *Dataset {
	out := NewDataset()
	for k, v := range ds.Attrs {
		out.Attrs[k] = v
	}
	return out
}

// finishDataset carries dataset-level coordinates and attributes over to the
// output: non-spatial coordinates unchanged, spatial ones replaced by the
// target grid's, and projection and mesh references rewritten.
func (r *Regridder) finishDataset(ds, out *Dataset) {
	isSpatial := make(map[string]bool)
	for _, d := range r.desc.DimsSource {
		isSpatial[d] = true
	}
	for _, name := range sortedKeys(ds.Coords) {
		c := ds.Coords[name]
		touches := false
		for _, d := range c.Dims {
			if isSpatial[d] {
				touches = true
			}
		}
		if touches {
			continue // replaced by the target grid's coordinates
		}
		out.Coords[name] = c
	}
	for name, c := range r.targetCoords {
		out.Coords[name] = c
	}

	if gm := out.AttrString("grid_mapping"); gm != "" {
		if r.gridMappingName == "" {
			delete(out.Attrs, "grid_mapping")
		} else {
			out.Attrs["grid_mapping"] = r.gridMappingName
		}
	}
	if r.gridMappingName != "" {
		out.Coords[r.gridMappingName] = r.gridMappingVar
	}
	if r.targetMeshKnown {
		out.Coords[r.targetMeshName] = r.targetMeshVar
	}
}

// findSpatialDims maps the engine's source dimensions onto an input array:
// by name first, then CF-aware through the array's own coordinates. ok is
// false when the array is not spatial and must pass through unchanged.
func (r *Regridder) findSpatialDims(da *DataArray) (dims []string, ok bool) {
	all := true
	for _, d := range r.desc.DimsSource {
		if !da.HasDim(d) {
			all = false
			break
		}
	}
	if all {
		return append([]string{}, r.desc.DimsSource...), true
	}
	if len(da.Coords) == 0 {
		return nil, false
	}
	tmp := &Dataset{Coords: da.Coords, Vars: map[string]*DataArray{}}
	lat, lon := findLatLon(tmp)
	if lat == nil || lon == nil {
		return nil, false
	}
	dims = horizontalDims(tmp, lat, lon)
	if len(dims) != len(r.desc.DimsSource) {
		return nil, false
	}
	for _, d := range dims {
		if !da.HasDim(d) {
			return nil, false
		}
	}
	return dims, true
}

// applyOperator multiplies the operator against nBatch contiguous slices of
// the flattened source axis, with optional NaN-aware renormalization. It is
// pure: safe for retries and for concurrent per-chunk execution.
func applyOperator(op *Operator, totals []float64, in []float64, nBatch int, skipNA bool, naThreshold float64) []float64 {
	out := make([]float64, nBatch*op.NDst)
	// The renormalization bound follows the reference semantics: a
	// destination is NaN where its valid weight fraction drops (strictly)
	// below clip(1-threshold, 1e-6, 1).
	bound := 1 - naThreshold
	if bound < 1e-6 {
		bound = 1e-6
	}
	if bound > 1 {
		bound = 1
	}

	var frac, filled []float64
	for b := 0; b < nBatch; b++ {
		src := in[b*op.NSrc : (b+1)*op.NSrc]
		dst := out[b*op.NDst : (b+1)*op.NDst]

		if !skipNA {
			for i, s := range op.S {
				dst[op.Row[i]] += s * src[op.Col[i]]
			}
			continue
		}

		if !sliceHasNaN(src) {
			// Fast path: identical to the skipna-off product, with the
			// precomputed total-weight vector deciding unmapped cells.
			for i, s := range op.S {
				dst[op.Row[i]] += s * src[op.Col[i]]
			}
			for j, t := range totals {
				if t < bound {
					dst[j] = math.NaN()
				}
			}
			continue
		}

		if frac == nil {
			frac = make([]float64, op.NDst)
			filled = make([]float64, op.NSrc)
		} else {
			for j := range frac {
				frac[j] = 0
			}
		}
		for j, v := range src {
			if math.IsNaN(v) {
				filled[j] = 0
			} else {
				filled[j] = v
			}
		}
		for i, s := range op.S {
			dst[op.Row[i]] += s * filled[op.Col[i]]
			if !math.IsNaN(src[op.Col[i]]) {
				frac[op.Row[i]] += s
			}
		}
		floats.Div(dst, frac)
		for j, f := range frac {
			if f < bound {
				dst[j] = math.NaN()
			}
		}
	}
	return out
}

func sliceHasNaN(s []float64) bool {
	for _, v := range s {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
