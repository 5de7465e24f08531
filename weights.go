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
	"strings"
)

// Method is an interpolation method.
type Method string

// The supported interpolation methods.
const (
	Bilinear     Method = "bilinear"
	Conservative Method = "conservative"
	NearestS2D   Method = "nearest_s2d"
	NearestD2S   Method = "nearest_d2s"
	Patch        Method = "patch"
)

// ParseMethod converts a method name to a Method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(s)); m {
	case Bilinear, Conservative, NearestS2D, NearestD2S, Patch:
		return m, nil
	default:
		return "", fmt.Errorf("regrid: unknown method %q", s)
	}
}

// ExtrapMethod is an extrapolation policy for destination cells that fall
// outside the source domain.
type ExtrapMethod string

// The recognized extrapolation methods. CreepFill is recognized in persisted
// metadata but not produced by the builtin generator.
const (
	ExtrapNone       ExtrapMethod = ""
	ExtrapNearestS2D ExtrapMethod = "nearest_s2d"
	ExtrapNearestIDW ExtrapMethod = "nearest_idw"
	ExtrapCreepFill  ExtrapMethod = "creep_fill"
)

// ParseExtrapMethod converts an extrapolation method name to an ExtrapMethod.
func ParseExtrapMethod(s string) (ExtrapMethod, error) {
	switch m := ExtrapMethod(strings.ToLower(s)); m {
	case ExtrapNone, ExtrapNearestS2D, ExtrapNearestIDW, ExtrapCreepFill:
		return m, nil
	default:
		return "", fmt.Errorf("regrid: unknown extrapolation method %q", s)
	}
}

// Operator is a sparse linear map from a flattened source index space to a
// flattened destination index space, stored as triplets. For every mapped
// destination row the weights sum to approximately one; unmapped rows have
// zero total weight. An Operator is never mutated after creation.
type Operator struct {
	Row, Col []int32
	S        []float64
	NSrc     int
	NDst     int
}

// NNZ returns the number of stored weights.
func (o *Operator) NNZ() int { return len(o.S) }

// TotalWeights returns the total incoming weight for each destination cell.
// The accumulation order matches Apply so that results derived from the two
// are bit-compatible.
func (o *Operator) TotalWeights() []float64 {
	t := make([]float64, o.NDst)
	for i, r := range o.Row {
		t[r] += o.S[i]
	}
	return t
}

// check validates triplet index bounds.
func (o *Operator) check() error {
	if len(o.Row) != len(o.S) || len(o.Col) != len(o.S) {
		return fmt.Errorf("regrid: operator triplet lengths differ: row=%d col=%d S=%d", len(o.Row), len(o.Col), len(o.S))
	}
	for i := range o.S {
		if int(o.Row[i]) < 0 || int(o.Row[i]) >= o.NDst {
			return fmt.Errorf("regrid: operator row index %d out of range [0, %d)", o.Row[i], o.NDst)
		}
		if int(o.Col[i]) < 0 || int(o.Col[i]) >= o.NSrc {
			return fmt.Errorf("regrid: operator column index %d out of range [0, %d)", o.Col[i], o.NSrc)
		}
	}
	return nil
}

// WeightDescriptor is the persisted unit: the operator together with the full
// provenance needed to validate reuse. It is read-only after construction and
// safe to share across goroutines and worker processes.
type WeightDescriptor struct {
	Op *Operator

	Method             Method
	Periodic           bool
	ExtrapMethod       ExtrapMethod
	ExtrapDistExponent float64

	ShapeSource, ShapeTarget []int
	DimsSource, DimsTarget   []string
}

// Key returns the content-derived identity of the descriptor. Reusing a
// persisted operator requires the key computed from the current grids to
// match the stored one exactly.
func (d *WeightDescriptor) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%v|%s",
		intTuple(d.ShapeSource), intTuple(d.ShapeTarget),
		stringTuple(d.DimsSource), stringTuple(d.DimsTarget),
		d.Method, d.Periodic, d.ExtrapMethod)
}

// intTuple renders an int slice in the stable text form used for identity
// keys and persisted attributes, e.g. "(18, 36)".
func intTuple(a []int) string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// stringTuple renders a string slice in the stable text form used for
// identity keys and persisted attributes, e.g. "(lat, lon)".
func stringTuple(a []string) string {
	return "(" + strings.Join(a, ", ") + ")"
}

// parseIntTuple parses the output of intTuple.
func parseIntTuple(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("regrid: malformed tuple %q", s)
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		var v int
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%d", &v); err != nil {
			return nil, fmt.Errorf("regrid: malformed tuple %q: %v", s, err)
		}
		out[i] = v
	}
	return out, nil
}

// parseStringTuple parses the output of stringTuple.
func parseStringTuple(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("regrid: malformed tuple %q", s)
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out, nil
}
