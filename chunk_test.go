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
	"math"
	"testing"

	"github.com/ctessum/sparse"
)

// timeField builds a (time, lat, lon) array on the source grid with distinct
// values per slice.
func timeField(t *testing.T, src *Dataset, nTime int) *DataArray {
	t.Helper()
	base, _ := latField(t, src).Values()
	data := sparse.ZerosDense(nTime, 18, 36)
	for k := 0; k < nTime; k++ {
		for i := 0; i < 18; i++ {
			for j := 0; j < 36; j++ {
				data.Set(float64(k+1)*base.Get(i, j), k, i, j)
			}
		}
	}
	return NewDataArray("t2m", []string{"time", "lat", "lon"}, data)
}

func checkSameElements(t *testing.T, a, b *DataArray) {
	t.Helper()
	aData, err := a.Values()
	if err != nil {
		t.Fatal(err)
	}
	bData, err := b.Values()
	if err != nil {
		t.Fatal(err)
	}
	if len(aData.Elements) != len(bData.Elements) {
		t.Fatalf("lengths differ: %d vs %d", len(aData.Elements), len(bData.Elements))
	}
	for i := range aData.Elements {
		x, y := aData.Elements[i], bData.Elements[i]
		if x != y && !(math.IsNaN(x) && math.IsNaN(y)) {
			t.Fatalf("element %d: %v vs %v", i, x, y)
		}
	}
}

func TestApplyChunkedMatchesApply(t *testing.T) {
	r, src, _ := newTestRegridder(t, Options{Workers: 3})
	da := timeField(t, src, 7)

	eager, err := r.Apply(da)
	if err != nil {
		t.Fatal(err)
	}
	for _, chunkSize := range []int{0, 1, 2, 7, 100} {
		chunked, err := r.ApplyChunked(context.Background(), da, chunkSize)
		if err != nil {
			t.Fatal(err)
		}
		checkSameElements(t, eager, chunked)
	}
}

func TestApplyChunkedSkipNA(t *testing.T) {
	r, src, _ := newTestRegridder(t, Options{SkipNA: true, Workers: 2})
	da := timeField(t, src, 5)
	data, _ := da.Values()
	data.Set(math.NaN(), 2, 9, 18)
	data.Set(math.NaN(), 4, 0, 0)

	eager, err := r.Apply(da)
	if err != nil {
		t.Fatal(err)
	}
	chunked, err := r.ApplyChunked(context.Background(), da, 2)
	if err != nil {
		t.Fatal(err)
	}
	checkSameElements(t, eager, chunked)
}

func TestApplyDatasetChunkedMatchesEager(t *testing.T) {
	r, src, dst := newTestRegridder(t, Options{Workers: 2})
	ds := NewDataset()
	ds.Attrs["title"] = "test data"
	ds.Vars["t2m"] = timeField(t, src, 6)
	stamp := NewDataArray("stamp", []string{"nchar"}, sparse.ZerosDense(4))
	ds.Vars["stamp"] = stamp

	eager, err := r.ApplyDataset(ds)
	if err != nil {
		t.Fatal(err)
	}
	chunked, err := r.ApplyDatasetChunked(context.Background(), ds, 2)
	if err != nil {
		t.Fatal(err)
	}
	checkSameElements(t, eager.Vars["t2m"], chunked.Vars["t2m"])
	if chunked.Vars["stamp"] != stamp {
		t.Error("a non-spatial variable should pass through unchanged")
	}
	if chunked.Attrs["title"] != "test data" {
		t.Error("dataset attributes should be preserved")
	}
	if chunked.Coords["lat"] != dst.Coords["lat"] {
		t.Error("the target grid's coordinates should be attached")
	}
}

func TestApplyChunkedPassThrough(t *testing.T) {
	r, _, _ := newTestRegridder(t, Options{})
	da := NewDataArray("stamp", []string{"time"}, sparse.ZerosDense(3))
	out, err := r.ApplyChunked(context.Background(), da, 1)
	if err != nil {
		t.Fatal(err)
	}
	if out != da {
		t.Error("a non-spatial array should pass through unchanged")
	}
}

func TestApplyChunkedCanceled(t *testing.T) {
	r, src, _ := newTestRegridder(t, Options{Workers: 2})
	da := timeField(t, src, 16)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.ApplyChunked(ctx, da, 1); err == nil {
		t.Error("a canceled context should abort the chunked apply")
	}
}
