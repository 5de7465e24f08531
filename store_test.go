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
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func testDescriptor() *WeightDescriptor {
	return &WeightDescriptor{
		Op: &Operator{
			Row:  []int32{0, 0, 1, 2},
			Col:  []int32{0, 1, 1, 3},
			S:    []float64{0.25, 0.75, 1, 1},
			NSrc: 4,
			NDst: 3,
		},
		Method:      Bilinear,
		Periodic:    true,
		ShapeSource: []int{2, 2},
		ShapeTarget: []int{3, 1},
		DimsSource:  []string{"lat", "lon"},
		DimsTarget:  []string{"y", "x"},
	}
}

func TestSaveLoadWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.nc")
	want := testDescriptor()
	if err := SaveWeights(path, want); err != nil {
		t.Fatal(err)
	}
	have, err := LoadWeights(path)
	if err != nil {
		t.Fatal(err)
	}

	// The triplets must round-trip bit for bit.
	if !reflect.DeepEqual(want.Op.Row, have.Op.Row) {
		t.Errorf("row: want %v, have %v", want.Op.Row, have.Op.Row)
	}
	if !reflect.DeepEqual(want.Op.Col, have.Op.Col) {
		t.Errorf("col: want %v, have %v", want.Op.Col, have.Op.Col)
	}
	if !reflect.DeepEqual(want.Op.S, have.Op.S) {
		t.Errorf("S: want %v, have %v", want.Op.S, have.Op.S)
	}
	if have.Op.NSrc != 4 || have.Op.NDst != 3 {
		t.Errorf("sizes: want 4, 3; have %d, %d", have.Op.NSrc, have.Op.NDst)
	}
	if have.Method != Bilinear || !have.Periodic {
		t.Errorf("identity: method %s periodic %t", have.Method, have.Periodic)
	}
	if !reflect.DeepEqual(want.ShapeSource, have.ShapeSource) ||
		!reflect.DeepEqual(want.ShapeTarget, have.ShapeTarget) {
		t.Errorf("shapes: want %v %v, have %v %v",
			want.ShapeSource, want.ShapeTarget, have.ShapeSource, have.ShapeTarget)
	}
	if !reflect.DeepEqual(want.DimsSource, have.DimsSource) ||
		!reflect.DeepEqual(want.DimsTarget, have.DimsTarget) {
		t.Errorf("dims: want %v %v, have %v %v",
			want.DimsSource, want.DimsTarget, have.DimsSource, have.DimsTarget)
	}
	if have.ExtrapMethod != ExtrapNone {
		t.Errorf("extrap_method: want none, have %q", have.ExtrapMethod)
	}
}

func TestValidateReuse(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(d *WeightDescriptor)
		field  string
	}{
		{"source shape", func(d *WeightDescriptor) { d.ShapeSource = []int{10, 10} }, "Source grid shape"},
		{"target shape", func(d *WeightDescriptor) { d.ShapeTarget = []int{4, 4} }, "Target grid shape"},
		{"source dims", func(d *WeightDescriptor) { d.DimsSource = []string{"y", "x"} }, "Source grid dimensions"},
		{"target dims", func(d *WeightDescriptor) { d.DimsTarget = []string{"lat", "lon"} }, "Target grid dimensions"},
		{"method", func(d *WeightDescriptor) { d.Method = Conservative }, "Interpolation method"},
		{"periodic", func(d *WeightDescriptor) { d.Periodic = false }, "Periodicity"},
		{"extrap", func(d *WeightDescriptor) { d.ExtrapMethod = ExtrapNearestS2D }, "Extrapolation method"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			loaded := testDescriptor()
			want := testDescriptor()
			c.mutate(want)
			err := validateReuse(loaded, want)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			ve, ok := err.(ValidationError)
			if !ok {
				t.Fatalf("want ValidationError, have %T", err)
			}
			if ve.Field != c.field {
				t.Errorf("field: want %q, have %q", c.field, ve.Field)
			}
			if !strings.Contains(err.Error(), "does not match") {
				t.Errorf("message should name the mismatch; have %q", err.Error())
			}
		})
	}

	if err := validateReuse(testDescriptor(), testDescriptor()); err != nil {
		t.Errorf("identical descriptors should validate: %v", err)
	}
}

func TestValidateReuseShapeMessage(t *testing.T) {
	loaded := testDescriptor()
	want := testDescriptor()
	want.ShapeSource = []int{18, 36}
	err := validateReuse(loaded, want)
	if err == nil {
		t.Fatal("expected a validation error")
	}
	msg := err.Error()
	for _, part := range []string{"Source grid shape", "(2, 2)", "(18, 36)"} {
		if !strings.Contains(msg, part) {
			t.Errorf("message %q should contain %q", msg, part)
		}
	}
}

func TestLoadWeightsRejectsBadIndices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.nc")
	d := testDescriptor()
	d.Op.Col[0] = 7 // out of range for NSrc=4
	if err := SaveWeights(path, d); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWeights(path); err == nil {
		t.Fatal("expected an error for out-of-range triplet indices")
	}
}
