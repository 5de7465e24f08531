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
	"math"
	"testing"

	"github.com/ctessum/sparse"
)

func floatPtr(v float64) *float64 { return &v }

// withNaN copies a field and pokes NaN into the given source cells.
func withNaN(t *testing.T, da *DataArray, cells ...[2]int) *DataArray {
	t.Helper()
	data, err := da.Values()
	if err != nil {
		t.Fatal(err)
	}
	out := data.Copy()
	for _, c := range cells {
		out.Set(math.NaN(), c[0], c[1])
	}
	return NewDataArray(da.Name, da.Dims, out)
}

func TestSkipNACleanInputMatchesOff(t *testing.T) {
	rOff, src, _ := newTestRegridder(t, Options{})
	rOn, _, _ := newTestRegridder(t, Options{SkipNA: true})
	da := latField(t, src)

	a, err := rOff.Apply(da)
	if err != nil {
		t.Fatal(err)
	}
	b, err := rOn.Apply(da)
	if err != nil {
		t.Fatal(err)
	}
	aData, _ := a.Values()
	bData, _ := b.Values()
	for i := range aData.Elements {
		// Bit-for-bit: the clean fast path performs the same product with
		// no division.
		if aData.Elements[i] != bData.Elements[i] {
			t.Fatalf("element %d: skipna off %v, on %v", i, aData.Elements[i], bData.Elements[i])
		}
	}
}

func TestSkipNAOffPropagatesNaN(t *testing.T) {
	r, src, _ := newTestRegridder(t, Options{})
	da := withNaN(t, latField(t, src), [2]int{9, 18})
	out, err := r.Apply(da)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := out.Values()
	nans := 0
	for _, v := range data.Elements {
		if math.IsNaN(v) {
			nans++
		}
	}
	if nans == 0 {
		t.Error("without skipna, a NaN source should poison the destinations it touches")
	}
	if nans == len(data.Elements) {
		t.Error("a single NaN source should not poison every destination")
	}
}

func TestSkipNARenormalizes(t *testing.T) {
	rOn, src, _ := newTestRegridder(t, Options{SkipNA: true})
	rOff, _, _ := newTestRegridder(t, Options{})
	clean := latField(t, src)
	dirty := withNaN(t, clean, [2]int{9, 18})

	ref, err := rOn.Apply(clean)
	if err != nil {
		t.Fatal(err)
	}
	out, err := rOn.Apply(dirty)
	if err != nil {
		t.Fatal(err)
	}
	poisoned, err := rOff.Apply(dirty)
	if err != nil {
		t.Fatal(err)
	}

	refData, _ := ref.Values()
	outData, _ := out.Values()
	poisonedData, _ := poisoned.Values()

	for i := range outData.Elements {
		if math.IsNaN(outData.Elements[i]) {
			t.Errorf("element %d: skipna should renormalize, not produce NaN", i)
		}
		if math.IsNaN(poisonedData.Elements[i]) {
			// A destination touched by the NaN source: renormalized
			// output should still be close to the smooth field.
			if math.Abs(outData.Elements[i]-refData.Elements[i]) > 0.1 {
				t.Errorf("element %d: renormalized value %g far from %g",
					i, outData.Elements[i], refData.Elements[i])
			}
			continue
		}
		// Destinations the NaN never touched must be unaffected (up to
		// the renormalizing division).
		if math.Abs(outData.Elements[i]-refData.Elements[i]) > 1e-12 {
			t.Errorf("element %d: untouched destination changed: %v vs %v",
				i, outData.Elements[i], refData.Elements[i])
		}
	}
}

func TestSkipNAThresholdStrict(t *testing.T) {
	// An explicit threshold of 0 disqualifies any destination with missing
	// weight; the nil default of 1 only disqualifies all-missing ones.
	strict, src, _ := newTestRegridder(t, Options{SkipNA: true, NAThreshold: floatPtr(0)})
	lax, _, _ := newTestRegridder(t, Options{SkipNA: true})
	dirty := withNaN(t, latField(t, src), [2]int{9, 18})

	sOut, err := strict.Apply(dirty)
	if err != nil {
		t.Fatal(err)
	}
	lOut, err := lax.Apply(dirty)
	if err != nil {
		t.Fatal(err)
	}
	sData, _ := sOut.Values()
	lData, _ := lOut.Values()

	strictNaNs, laxNaNs := 0, 0
	for i := range sData.Elements {
		if math.IsNaN(sData.Elements[i]) {
			strictNaNs++
		}
		if math.IsNaN(lData.Elements[i]) {
			laxNaNs++
		}
	}
	if strictNaNs == 0 {
		t.Error("a strict threshold should reject partially missing destinations")
	}
	if laxNaNs != 0 {
		t.Error("the default threshold should tolerate partial missingness")
	}
}

func TestSkipNAAllMissing(t *testing.T) {
	r, src, _ := newTestRegridder(t, Options{SkipNA: true})
	da := latField(t, src)
	data, _ := da.Values()
	all := sparse.ZerosDense(data.Shape...)
	for i := range all.Elements {
		all.Elements[i] = math.NaN()
	}
	out, err := r.Apply(NewDataArray("t2m", da.Dims, all))
	if err != nil {
		t.Fatal(err)
	}
	outData, _ := out.Values()
	for i, v := range outData.Elements {
		if !math.IsNaN(v) {
			t.Fatalf("element %d: all-missing input must give NaN, have %g", i, v)
		}
	}
}

func TestSkipNAPerBatchSlice(t *testing.T) {
	// The NaN decision is per batch slice: a NaN in one time step must not
	// affect another.
	r, src, _ := newTestRegridder(t, Options{SkipNA: true})
	base, _ := latField(t, src).Values()

	data := sparse.ZerosDense(2, 18, 36)
	for i := 0; i < 18; i++ {
		for j := 0; j < 36; j++ {
			data.Set(base.Get(i, j), 0, i, j)
			data.Set(base.Get(i, j), 1, i, j)
		}
	}
	data.Set(math.NaN(), 1, 9, 18)
	da := NewDataArray("t2m", []string{"time", "lat", "lon"}, data)

	out, err := r.Apply(da)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := r.Apply(latField(t, src))
	if err != nil {
		t.Fatal(err)
	}
	refData, _ := ref.Values()
	outData, _ := out.Values()
	for i := 0; i < 9; i++ {
		for j := 0; j < 18; j++ {
			if outData.Get(0, i, j) != refData.Get(i, j) {
				t.Fatalf("clean slice (%d,%d) affected by the dirty one", i, j)
			}
		}
	}
}
