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

	"github.com/ctessum/sparse"
	"github.com/gonum/floats"
)

// deferredQualityThreshold is the destination size above which String skips
// the weight-quality summary rather than scanning the operator.
const deferredQualityThreshold = 1000000

// Report summarizes the quality of a weight operator: how many destination
// cells no source cell maps to, and the spread of the per-destination weight
// sums over the mapped cells.
type Report struct {
	UnmappedCount    int
	UnmappedFraction float64

	WeightSumMin  float64
	WeightSumMax  float64
	WeightSumMean float64

	NSrc     int
	NDst     int
	NWeights int
	Method   Method
	Periodic bool
}

// Report computes the engine's quality report. The first call scans the
// operator; subsequent calls return the same report.
func (r *Regridder) Report() *Report {
	r.reportOnce.Do(func() {
		d := r.desc
		rep := &Report{
			NSrc:     d.Op.NSrc,
			NDst:     d.Op.NDst,
			NWeights: d.Op.NNZ(),
			Method:   d.Method,
			Periodic: d.Periodic,
		}
		mapped := make([]float64, 0, len(r.totals))
		for _, t := range r.totals {
			if t == 0 {
				rep.UnmappedCount++
			} else {
				mapped = append(mapped, t)
			}
		}
		if rep.NDst > 0 {
			rep.UnmappedFraction = float64(rep.UnmappedCount) / float64(rep.NDst)
		}
		if len(mapped) > 0 {
			rep.WeightSumMin = floats.Min(mapped)
			rep.WeightSumMax = floats.Max(mapped)
			rep.WeightSumMean = floats.Sum(mapped) / float64(len(mapped))
		}
		r.report = rep
	})
	return r.report
}

// QualityReport returns the report as a flat map, convenient for logging and
// serialization.
func (r *Regridder) QualityReport() map[string]interface{} {
	rep := r.Report()
	return map[string]interface{}{
		"unmapped_count":    rep.UnmappedCount,
		"unmapped_fraction": rep.UnmappedFraction,
		"weight_sum_min":    rep.WeightSumMin,
		"weight_sum_max":    rep.WeightSumMax,
		"weight_sum_mean":   rep.WeightSumMean,
		"n_src":             rep.NSrc,
		"n_dst":             rep.NDst,
		"n_weights":         rep.NWeights,
		"method":            string(rep.Method),
		"periodic":          rep.Periodic,
	}
}

// String summarizes the engine. For very large destination grids the quality
// summary is deferred so that printing an engine stays cheap.
func (r *Regridder) String() string {
	d := r.desc
	s := fmt.Sprintf("Regridder(method=%s, periodic=%t, shape_source=%s, shape_target=%s, n_weights=%d",
		d.Method, d.Periodic, intTuple(d.ShapeSource), intTuple(d.ShapeTarget), d.Op.NNZ())
	if prodInts(d.ShapeTarget) > deferredQualityThreshold {
		return s + ", quality=deferred)"
	}
	rep := r.Report()
	return s + fmt.Sprintf(", unmapped=%d (%.2f%%))", rep.UnmappedCount, 100*rep.UnmappedFraction)
}

// WeightsToDataset exports the engine's weights as a labeled dataset with the
// same variables and attributes as the persisted file form, for inspection
// without touching the filesystem.
func (r *Regridder) WeightsToDataset() *Dataset {
	d := r.desc
	nnz := d.Op.NNZ()

	row := sparse.ZerosDense(nnz)
	col := sparse.ZerosDense(nnz)
	s := sparse.ZerosDense(nnz)
	for i := 0; i < nnz; i++ {
		row.Elements[i] = float64(d.Op.Row[i])
		col.Elements[i] = float64(d.Op.Col[i])
	}
	copy(s.Elements, d.Op.S)

	ds := NewDataset()
	ds.Vars["row"] = NewDataArray("row", []string{"nnz"}, row)
	ds.Vars["row"].Attrs["description"] = "flattened destination cell index"
	ds.Vars["col"] = NewDataArray("col", []string{"nnz"}, col)
	ds.Vars["col"].Attrs["description"] = "flattened source cell index"
	ds.Vars["S"] = NewDataArray("S", []string{"nnz"}, s)
	ds.Vars["S"].Attrs["description"] = "interpolation weight"

	ds.Attrs["method"] = string(d.Method)
	ds.Attrs["periodic"] = boolString(d.Periodic)
	ds.Attrs["extrap_method"] = extrapString(d.ExtrapMethod)
	ds.Attrs["extrap_dist_exponent"] = d.ExtrapDistExponent
	ds.Attrs["n_src"] = d.Op.NSrc
	ds.Attrs["n_dst"] = d.Op.NDst
	ds.Attrs["shape_source"] = intTuple(d.ShapeSource)
	ds.Attrs["shape_target"] = intTuple(d.ShapeTarget)
	ds.Attrs["dims_source"] = stringTuple(d.DimsSource)
	ds.Attrs["dims_target"] = stringTuple(d.DimsTarget)
	return ds
}
