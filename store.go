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

	"github.com/ctessum/cdf"
)

// ValidationError reports that a reused weight file's stored identity
// disagrees with the identity computed from the current grids.
type ValidationError struct {
	Field      string
	Have, Want string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("regrid: %s %s in weight file does not match %s computed from the current grids", e.Field, e.Have, e.Want)
}

// SaveWeights writes a weight descriptor to a NetCDF file at path: triplet
// variables row(nnz), col(nnz), and S(nnz), plus the full identity metadata
// as global attributes, with tuple-valued fields serialized to a stable text
// form.
func SaveWeights(path string, d *WeightDescriptor) error {
	h := cdf.NewHeader([]string{"nnz"}, []int{d.Op.NNZ()})
	h.AddVariable("row", []string{"nnz"}, []int32{0})
	h.AddAttribute("row", "description", "flattened destination cell index")
	h.AddVariable("col", []string{"nnz"}, []int32{0})
	h.AddAttribute("col", "description", "flattened source cell index")
	h.AddVariable("S", []string{"nnz"}, []float64{0})
	h.AddAttribute("S", "description", "interpolation weight")

	h.AddAttribute("", "method", string(d.Method))
	h.AddAttribute("", "periodic", boolString(d.Periodic))
	h.AddAttribute("", "extrap_method", extrapString(d.ExtrapMethod))
	h.AddAttribute("", "extrap_dist_exponent", []float64{d.ExtrapDistExponent})
	h.AddAttribute("", "n_src", []int32{int32(d.Op.NSrc)})
	h.AddAttribute("", "n_dst", []int32{int32(d.Op.NDst)})
	h.AddAttribute("", "shape_source", intTuple(d.ShapeSource))
	h.AddAttribute("", "shape_target", intTuple(d.ShapeTarget))
	h.AddAttribute("", "dims_source", stringTuple(d.DimsSource))
	h.AddAttribute("", "dims_target", stringTuple(d.DimsTarget))
	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("regrid: creating weight file header: %v", err)
	}

	ff, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("regrid: creating weight file: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("regrid: creating weight file: %v", err)
	}

	w := f.Writer("row", []int{0}, []int{d.Op.NNZ()})
	if _, err := w.Write(d.Op.Row); err != nil {
		return fmt.Errorf("regrid: writing weight rows: %v", err)
	}
	w = f.Writer("col", []int{0}, []int{d.Op.NNZ()})
	if _, err := w.Write(d.Op.Col); err != nil {
		return fmt.Errorf("regrid: writing weight columns: %v", err)
	}
	w = f.Writer("S", []int{0}, []int{d.Op.NNZ()})
	if _, err := w.Write(d.Op.S); err != nil {
		return fmt.Errorf("regrid: writing weights: %v", err)
	}
	return cdf.UpdateNumRecs(ff)
}

// LoadWeights reconstructs a weight descriptor from a file written by
// SaveWeights. Only the weight file's own variables are materialized; the
// caller's grids are not touched.
func LoadWeights(path string) (*WeightDescriptor, error) {
	ff, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("regrid: opening weight file: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("regrid: reading weight file %s: %v", path, err)
	}

	row, err := readInt32Var(f, "row")
	if err != nil {
		return nil, err
	}
	col, err := readInt32Var(f, "col")
	if err != nil {
		return nil, err
	}
	s, err := readFloat64Var(f, "S")
	if err != nil {
		return nil, err
	}

	d := &WeightDescriptor{
		Op: &Operator{Row: row, Col: col, S: s},
	}
	d.Method = Method(attrStr(f, "method"))
	d.Periodic = attrStr(f, "periodic") == "true"
	em, err := ParseExtrapMethod(parseExtrapString(attrStr(f, "extrap_method")))
	if err != nil {
		return nil, err
	}
	d.ExtrapMethod = em
	d.ExtrapDistExponent = toFloat(f.Header.GetAttribute("", "extrap_dist_exponent"))
	d.Op.NSrc = int(toFloat(f.Header.GetAttribute("", "n_src")))
	d.Op.NDst = int(toFloat(f.Header.GetAttribute("", "n_dst")))
	if d.ShapeSource, err = parseIntTuple(attrStr(f, "shape_source")); err != nil {
		return nil, err
	}
	if d.ShapeTarget, err = parseIntTuple(attrStr(f, "shape_target")); err != nil {
		return nil, err
	}
	if d.DimsSource, err = parseStringTuple(attrStr(f, "dims_source")); err != nil {
		return nil, err
	}
	if d.DimsTarget, err = parseStringTuple(attrStr(f, "dims_target")); err != nil {
		return nil, err
	}
	if err := d.Op.check(); err != nil {
		return nil, fmt.Errorf("regrid: weight file %s: %w", path, err)
	}
	return d, nil
}

// validateReuse compares the identity of a loaded descriptor against the
// identity computed from the current grids, returning a ValidationError
// naming the first mismatched field.
func validateReuse(loaded, want *WeightDescriptor) error {
	if !equalInts(loaded.ShapeSource, want.ShapeSource) {
		return ValidationError{Field: "Source grid shape", Have: intTuple(loaded.ShapeSource), Want: intTuple(want.ShapeSource)}
	}
	if !equalInts(loaded.ShapeTarget, want.ShapeTarget) {
		return ValidationError{Field: "Target grid shape", Have: intTuple(loaded.ShapeTarget), Want: intTuple(want.ShapeTarget)}
	}
	if !equalStrings(loaded.DimsSource, want.DimsSource) {
		return ValidationError{Field: "Source grid dimensions", Have: stringTuple(loaded.DimsSource), Want: stringTuple(want.DimsSource)}
	}
	if !equalStrings(loaded.DimsTarget, want.DimsTarget) {
		return ValidationError{Field: "Target grid dimensions", Have: stringTuple(loaded.DimsTarget), Want: stringTuple(want.DimsTarget)}
	}
	if loaded.Method != want.Method {
		return ValidationError{Field: "Interpolation method", Have: string(loaded.Method), Want: string(want.Method)}
	}
	if loaded.Periodic != want.Periodic {
		return ValidationError{Field: "Periodicity", Have: boolString(loaded.Periodic), Want: boolString(want.Periodic)}
	}
	if loaded.ExtrapMethod != want.ExtrapMethod {
		return ValidationError{Field: "Extrapolation method", Have: extrapString(loaded.ExtrapMethod), Want: extrapString(want.ExtrapMethod)}
	}
	return nil
}

func readInt32Var(f *cdf.File, name string) ([]int32, error) {
	r := f.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("regrid: reading weight variable %s: %v", name, err)
	}
	v, ok := buf.([]int32)
	if !ok {
		return nil, fmt.Errorf("regrid: weight variable %s has type %T, expected []int32", name, buf)
	}
	return v, nil
}

func readFloat64Var(f *cdf.File, name string) ([]float64, error) {
	r := f.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("regrid: reading weight variable %s: %v", name, err)
	}
	v, ok := buf.([]float64)
	if !ok {
		return nil, fmt.Errorf("regrid: weight variable %s has type %T, expected []float64", name, buf)
	}
	return v, nil
}

func attrStr(f *cdf.File, name string) string {
	if v := f.Header.GetAttribute("", name); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// extrapString renders an extrapolation method for persistence; the empty
// method is stored as "none" because empty-string attributes round-trip
// poorly.
func extrapString(m ExtrapMethod) string {
	if m == ExtrapNone {
		return "none"
	}
	return string(m)
}

func parseExtrapString(s string) string {
	if s == "none" {
		return ""
	}
	return s
}
