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
	"context"
	"fmt"
	"sync"
)

// ApplyChunked regrids one labeled array like Apply, but splits the work into
// chunks of chunkSize batch slices that run concurrently on a bounded worker
// pool. Spatial dimensions are never split, so every destination value is
// computed from a complete source field and the result is identical to
// Apply's. chunkSize <= 0 divides the batch evenly among the workers.
func (r *Regridder) ApplyChunked(ctx context.Context, da *DataArray, chunkSize int) (*DataArray, error) {
	spatial, ok := r.findSpatialDims(da)
	if !ok {
		return da, nil
	}
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

	entry, err := r.cache.operator(ctx, r.desc.Key(), func() (*Operator, []float64, error) {
		return r.desc.Op, r.totals, nil
	})
	if err != nil {
		return nil, err
	}
	op, totals := entry.Op, entry.Totals

	if chunkSize <= 0 {
		chunkSize = (nBatch + r.workers - 1) / r.workers
		if chunkSize < 1 {
			chunkSize = 1
		}
	}

	out := make([]float64, nBatch*op.NDst)
	type chunk struct{ begin, end int }
	chunks := make(chan chunk)
	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range chunks {
				// Each chunk owns a disjoint range of batch slices, so
				// workers write to disjoint parts of out.
				in := tr.Elements[c.begin*op.NSrc : c.end*op.NSrc]
				res := applyOperator(op, totals, in, c.end-c.begin, r.skipNA, r.naThreshold)
				copy(out[c.begin*op.NDst:c.end*op.NDst], res)
			}
		}()
	}
loop:
	for begin := 0; begin < nBatch; begin += chunkSize {
		end := begin + chunkSize
		if end > nBatch {
			end = nBatch
		}
		select {
		case chunks <- chunk{begin, end}:
		case <-ctx.Done():
			break loop
		}
	}
	close(chunks)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outShape := append(append([]int{}, batchShape...), r.desc.ShapeTarget...)
	outArr := reshapeDense(out, outShape)

	outDims := append(append([]string{}, batchDims...), r.desc.DimsTarget...)
	res := da.copyMeta(outDims, outArr)
	r.transformCoords(da, res, isSpatial, newApplyState())
	r.rewriteProjection(res)
	r.rewriteMeshAttrs(res)
	res.Attrs["history"] = r.historyLine() + historyTail(da.AttrString("history"))
	return res, nil
}

// ApplyDatasetChunked regrids every member of a dataset like ApplyDataset,
// but through ApplyChunked, so large batch dimensions are processed
// concurrently. Non-spatial members pass through unchanged.
func (r *Regridder) ApplyDatasetChunked(ctx context.Context, ds *Dataset, chunkSize int) (*Dataset, error) {
	out := newOutputDataset(ds)
	for _, name := range sortedKeys(ds.Vars) {
		v := ds.Vars[name]
		if isGridPlumbing(v) {
			continue
		}
		rv, err := r.ApplyChunked(ctx, v, chunkSize)
		if err != nil {
			return nil, fmt.Errorf("regrid: variable %s: %w", name, err)
		}
		out.Vars[name] = rv
	}
	r.finishDataset(ds, out)
	return out, nil
}
