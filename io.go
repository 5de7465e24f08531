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
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// ReadDataset reads a NetCDF file into a Dataset. Variable payloads are lazy:
// each is read from the file on first use, so describing a grid from a large
// file touches only its coordinate variables. A variable named after its own
// dimension becomes a coordinate; everything else becomes a data variable.
func ReadDataset(path string) (*Dataset, error) {
	ff, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("regrid: opening %s: %v", path, err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("regrid: reading %s: %v", path, err)
	}

	ds := NewDataset()
	for _, a := range f.Header.Attributes("") {
		ds.Attrs[a] = attrValue(f.Header.GetAttribute("", a))
	}

	for _, name := range f.Header.Variables() {
		name := name
		dims := f.Header.Dimensions(name)
		shape := f.Header.Lengths(name)
		if !numericVariable(f.Header.ZeroValue(name, 1)) {
			continue // character variables carry no regriddable data
		}
		da := NewLazyDataArray(name, dims, shape, func() (*sparse.DenseArray, error) {
			return readVariable(path, name)
		})
		for _, a := range f.Header.Attributes(name) {
			da.Attrs[a] = attrValue(f.Header.GetAttribute(name, a))
		}
		if isCoordName(name, dims) {
			ds.Coords[name] = da
		} else {
			ds.Vars[name] = da
		}
	}
	return ds, nil
}

// WriteDataset writes a Dataset to a NetCDF file at path. All numeric
// payloads are stored as doubles.
func WriteDataset(path string, ds *Dataset) error {
	dimLen := make(map[string]int)
	var dims []string
	for _, a := range ds.allArrays() {
		v, err := a.Values()
		if err != nil {
			return fmt.Errorf("regrid: writing %s: %v", path, err)
		}
		for i, d := range a.Dims {
			if _, ok := dimLen[d]; !ok {
				dims = append(dims, d)
				dimLen[d] = v.Shape[i]
			} else if dimLen[d] != v.Shape[i] {
				return fmt.Errorf("regrid: writing %s: dimension %s has conflicting lengths %d and %d",
					path, d, dimLen[d], v.Shape[i])
			}
		}
	}
	lengths := make([]int, len(dims))
	for i, d := range dims {
		lengths[i] = dimLen[d]
	}

	h := cdf.NewHeader(dims, lengths)
	for _, a := range ds.allArrays() {
		h.AddVariable(a.Name, a.Dims, []float64{0})
		for _, k := range sortedAttrKeys(a.Attrs) {
			h.AddAttribute(a.Name, k, cdfAttr(a.Attrs[k]))
		}
	}
	for _, k := range sortedAttrKeys(ds.Attrs) {
		h.AddAttribute("", k, cdfAttr(ds.Attrs[k]))
	}
	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("regrid: writing %s: %v", path, err)
	}

	ff, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("regrid: writing %s: %v", path, err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("regrid: writing %s: %v", path, err)
	}
	for _, a := range ds.allArrays() {
		v, err := a.Values()
		if err != nil {
			return fmt.Errorf("regrid: writing %s: %v", path, err)
		}
		end := make([]int, len(v.Shape))
		copy(end, v.Shape)
		w := f.Writer(a.Name, make([]int, len(v.Shape)), end)
		if _, err := w.Write(v.Elements); err != nil {
			return fmt.Errorf("regrid: writing %s variable %s: %v", path, a.Name, err)
		}
	}
	return cdf.UpdateNumRecs(ff)
}

// readVariable reads one variable from a NetCDF file as float64, reopening
// the file so lazy loads are independent of the describing read.
func readVariable(path, name string) (*sparse.DenseArray, error) {
	ff, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("regrid: opening %s: %v", path, err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("regrid: reading %s: %v", path, err)
	}
	r := f.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("regrid: reading %s variable %s: %v", path, name, err)
	}
	vals, err := toFloats(buf)
	if err != nil {
		return nil, fmt.Errorf("regrid: variable %s: %v", name, err)
	}
	out := sparse.ZerosDense(f.Header.Lengths(name)...)
	copy(out.Elements, vals)
	return out, nil
}

func toFloats(buf interface{}) ([]float64, error) {
	switch v := buf.(type) {
	case []float64:
		return v, nil
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int16:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int8:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported data type %T", buf)
	}
}

func numericVariable(zero interface{}) bool {
	switch zero.(type) {
	case []float64, []float32, []int32, []int16, []int8:
		return true
	default:
		return false
	}
}

// attrValue unwraps single-element attribute slices so numeric attributes
// compare naturally.
func attrValue(v interface{}) interface{} {
	switch a := v.(type) {
	case []float64:
		if len(a) == 1 {
			return a[0]
		}
	case []float32:
		if len(a) == 1 {
			return float64(a[0])
		}
	case []int32:
		if len(a) == 1 {
			return int(a[0])
		}
	}
	return v
}

// cdfAttr converts an attribute value to a type the NetCDF encoder accepts.
func cdfAttr(v interface{}) interface{} {
	switch a := v.(type) {
	case string:
		return a
	case bool:
		return boolString(a)
	case float64:
		return []float64{a}
	case float32:
		return []float64{float64(a)}
	case int:
		return []int32{int32(a)}
	case int32:
		return []int32{a}
	case int64:
		return []int32{int32(a)}
	case []float64, []int32:
		return a
	default:
		return fmt.Sprintf("%v", a)
	}
}

func isCoordName(name string, dims []string) bool {
	for _, d := range dims {
		if d == name {
			return true
		}
	}
	return false
}

func sortedAttrKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
