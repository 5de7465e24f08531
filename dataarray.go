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
	"sort"
	"sync"

	"github.com/ctessum/sparse"
	"github.com/spf13/cast"
)

// DataArray is a labeled multi-dimensional array. It pairs a dense payload
// with dimension names, attributes, and attached coordinate arrays, which may
// themselves carry coordinates. The payload may be lazily backed, in which
// case dimension names, shape, and attributes are available without
// materializing the data.
type DataArray struct {
	Name   string
	Dims   []string
	Attrs  map[string]interface{}
	Coords map[string]*DataArray

	data    *sparse.DenseArray
	shape   []int
	load    func() (*sparse.DenseArray, error)
	once    sync.Once
	loadErr error
}

// NewDataArray creates an eager DataArray from data. The number of dimension
// names must match the rank of data.
func NewDataArray(name string, dims []string, data *sparse.DenseArray) *DataArray {
	if len(dims) != len(data.Shape) {
		panic(fmt.Errorf("regrid: %d dimension names for array of rank %d", len(dims), len(data.Shape)))
	}
	shape := make([]int, len(data.Shape))
	copy(shape, data.Shape)
	return &DataArray{
		Name:   name,
		Dims:   dims,
		Attrs:  make(map[string]interface{}),
		Coords: make(map[string]*DataArray),
		data:   data,
		shape:  shape,
	}
}

// NewLazyDataArray creates a DataArray whose payload is materialized, at most
// once, by load on first use. shape must describe the array load will return.
func NewLazyDataArray(name string, dims []string, shape []int, load func() (*sparse.DenseArray, error)) *DataArray {
	if len(dims) != len(shape) {
		panic(fmt.Errorf("regrid: %d dimension names for array of rank %d", len(dims), len(shape)))
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return &DataArray{
		Name:   name,
		Dims:   dims,
		Attrs:  make(map[string]interface{}),
		Coords: make(map[string]*DataArray),
		shape:  s,
		load:   load,
	}
}

// Shape returns the array shape. It never materializes lazy data.
func (d *DataArray) Shape() []int { return d.shape }

// Loaded reports whether the payload is resident in memory.
func (d *DataArray) Loaded() bool { return d.data != nil }

// Values returns the array payload, materializing it on first use if the
// array is lazily backed.
func (d *DataArray) Values() (*sparse.DenseArray, error) {
	if d.data == nil && d.load != nil {
		d.once.Do(func() {
			d.data, d.loadErr = d.load()
			if d.loadErr == nil && !equalInts(d.data.Shape, d.shape) {
				d.loadErr = fmt.Errorf("regrid: lazy load for %q returned shape %v, expected %v", d.Name, d.data.Shape, d.shape)
				d.data = nil
			}
		})
	}
	if d.loadErr != nil {
		return nil, d.loadErr
	}
	if d.data == nil {
		return nil, fmt.Errorf("regrid: array %q has no data", d.Name)
	}
	return d.data, nil
}

// HasDim reports whether the array has the named dimension.
func (d *DataArray) HasDim(dim string) bool {
	for _, dd := range d.Dims {
		if dd == dim {
			return true
		}
	}
	return false
}

// Size returns the length of the named dimension, or -1 if the array does not
// have it.
func (d *DataArray) Size(dim string) int {
	for i, dd := range d.Dims {
		if dd == dim {
			return d.shape[i]
		}
	}
	return -1
}

// AttrString returns the named attribute rendered as a string, or "" if it is
// not set.
func (d *DataArray) AttrString(name string) string {
	if v, ok := d.Attrs[name]; ok {
		return cast.ToString(v)
	}
	return ""
}

// copyMeta returns a shallow structural copy of d with the given payload,
// dropping coordinates (the caller reattaches the ones it wants).
func (d *DataArray) copyMeta(dims []string, data *sparse.DenseArray) *DataArray {
	out := NewDataArray(d.Name, dims, data)
	for k, v := range d.Attrs {
		out.Attrs[k] = v
	}
	return out
}

// Dataset is a collection of labeled arrays sharing coordinates, mirroring a
// NetCDF file: named variables, named coordinate arrays, global attributes.
type Dataset struct {
	Vars   map[string]*DataArray
	Coords map[string]*DataArray
	Attrs  map[string]interface{}
}

// NewDataset creates an empty Dataset.
func NewDataset() *Dataset {
	return &Dataset{
		Vars:   make(map[string]*DataArray),
		Coords: make(map[string]*DataArray),
		Attrs:  make(map[string]interface{}),
	}
}

// AttrString returns the named global attribute rendered as a string, or ""
// if it is not set.
func (ds *Dataset) AttrString(name string) string {
	if v, ok := ds.Attrs[name]; ok {
		return cast.ToString(v)
	}
	return ""
}

// coord returns the named array, searching coordinates first and then
// variables; UGRID files routinely store connectivity and mesh-topology
// holders as data variables.
func (ds *Dataset) coord(name string) *DataArray {
	if c, ok := ds.Coords[name]; ok {
		return c
	}
	if v, ok := ds.Vars[name]; ok {
		return v
	}
	return nil
}

// allArrays returns coordinates followed by variables, with names sorted
// within each group so detector results are deterministic.
func (ds *Dataset) allArrays() []*DataArray {
	out := make([]*DataArray, 0, len(ds.Coords)+len(ds.Vars))
	for _, name := range sortedKeys(ds.Coords) {
		out = append(out, ds.Coords[name])
	}
	for _, name := range sortedKeys(ds.Vars) {
		out = append(out, ds.Vars[name])
	}
	return out
}

// transposeDense returns a copy of a with its axes permuted so that output
// axis i is input axis perm[i].
func transposeDense(a *sparse.DenseArray, perm []int) *sparse.DenseArray {
	if len(perm) != len(a.Shape) {
		panic(fmt.Errorf("regrid: permutation %v for array of rank %d", perm, len(a.Shape)))
	}
	outShape := make([]int, len(perm))
	for i, p := range perm {
		outShape[i] = a.Shape[p]
	}
	out := sparse.ZerosDense(outShape...)

	inStrides := rowMajorStrides(a.Shape)
	outStrides := rowMajorStrides(outShape)
	idx := make([]int, len(outShape))
	for i := range out.Elements {
		// Decompose i into out indices, then map back through perm.
		rem := i
		for ax := range outShape {
			idx[ax] = rem / outStrides[ax]
			rem = rem % outStrides[ax]
		}
		j := 0
		for ax, p := range perm {
			j += idx[ax] * inStrides[p]
		}
		out.Elements[i] = a.Elements[j]
	}
	return out
}

// reshapeDense copies flat row-major elements into a dense array of the
// given shape; the element order is unchanged.
func reshapeDense(elements []float64, shape []int) *sparse.DenseArray {
	if prodInts(shape) != len(elements) {
		panic(fmt.Errorf("regrid: cannot reshape %d elements to %v", len(elements), shape))
	}
	out := sparse.ZerosDense(shape...)
	copy(out.Elements, elements)
	return out
}

func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	s := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= shape[i]
	}
	return strides
}

func prodInts(a []int) int {
	p := 1
	for _, v := range a {
		p *= v
	}
	return p
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]*DataArray) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
