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
	"reflect"
	"strings"
	"testing"

	"github.com/ctessum/sparse"
)

func TestDescribeGridRectilinear(t *testing.T) {
	ds := GlobalGrid(10, 10, true)
	m, err := DescribeGrid(ds)
	if err != nil {
		t.Fatal(err)
	}
	if m.Topology != Rectilinear {
		t.Errorf("topology: want rectilinear, have %s", m.Topology)
	}
	if want, have := []string{"lat", "lon"}, m.DimNames; !reflect.DeepEqual(want, have) {
		t.Errorf("dims: want %v, have %v", want, have)
	}
	if want, have := []int{18, 36}, m.Shape; !reflect.DeepEqual(want, have) {
		t.Errorf("shape: want %v, have %v", want, have)
	}
	if !m.Periodic {
		t.Error("a global grid should be detected as periodic")
	}
	if m.LatBounds == nil || len(m.LatBounds) != 19 {
		t.Errorf("lat bounds: want 19 edges, have %d", len(m.LatBounds))
	}
	if m.LonBounds[0] != 0 || m.LonBounds[36] != 360 {
		t.Errorf("lon bounds: want [0, 360], have [%g, %g]", m.LonBounds[0], m.LonBounds[36])
	}
	if m.Detector != "cf" {
		t.Errorf("detector: want cf, have %s", m.Detector)
	}
}

func TestDescribeGridRegionalNotPeriodic(t *testing.T) {
	ds := RegionalGrid(30, 60, -10, 40, 1, 1, false)
	m, err := DescribeGrid(ds)
	if err != nil {
		t.Fatal(err)
	}
	if m.Periodic {
		t.Error("a regional grid should not be detected as periodic")
	}
	if want, have := []int{30, 50}, m.Shape; !reflect.DeepEqual(want, have) {
		t.Errorf("shape: want %v, have %v", want, have)
	}
}

func TestDescribeGridCurvilinear(t *testing.T) {
	ny, nx := 3, 4
	lat2 := sparse.ZerosDense(ny, nx)
	lon2 := sparse.ZerosDense(ny, nx)
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			lat2.Set(float64(10*i), i, j)
			lon2.Set(float64(20*j), i, j)
		}
	}
	ds := NewDataset()
	ds.Coords["nav_lat"] = NewDataArray("nav_lat", []string{"y", "x"}, lat2)
	ds.Coords["nav_lat"].Attrs["standard_name"] = "latitude"
	ds.Coords["nav_lon"] = NewDataArray("nav_lon", []string{"y", "x"}, lon2)
	ds.Coords["nav_lon"].Attrs["standard_name"] = "longitude"

	m, err := DescribeGrid(ds)
	if err != nil {
		t.Fatal(err)
	}
	if m.Topology != Curvilinear {
		t.Errorf("topology: want curvilinear, have %s", m.Topology)
	}
	if want, have := []string{"y", "x"}, m.DimNames; !reflect.DeepEqual(want, have) {
		t.Errorf("dims: want %v, have %v", want, have)
	}
	if want, have := ny*nx, len(m.Lat); want != have {
		t.Errorf("samples: want %d, have %d", want, have)
	}
}

func TestDescribeGridSCRIP(t *testing.T) {
	n := 6
	lat := sparse.ZerosDense(n)
	lon := sparse.ZerosDense(n)
	for i := 0; i < n; i++ {
		lat.Elements[i] = float64(i) * math.Pi / 180 * 10
		lon.Elements[i] = float64(i) * math.Pi / 180 * 30
	}
	ds := NewDataset()
	ds.Vars["grid_center_lat"] = NewDataArray("grid_center_lat", []string{"grid_size"}, lat)
	ds.Vars["grid_center_lat"].Attrs["units"] = "radians"
	ds.Vars["grid_center_lon"] = NewDataArray("grid_center_lon", []string{"grid_size"}, lon)
	ds.Vars["grid_center_lon"].Attrs["units"] = "radians"

	m, err := DescribeGrid(ds)
	if err != nil {
		t.Fatal(err)
	}
	if m.Detector != "scrip" {
		t.Fatalf("detector: want scrip, have %s", m.Detector)
	}
	if m.Topology != Cloud {
		t.Errorf("topology: want cloud, have %s", m.Topology)
	}
	if math.Abs(m.Lat[1]-10) > 1e-12 {
		t.Errorf("radians should convert to degrees: want 10, have %g", m.Lat[1])
	}
}

func TestDescribeGridMPAS(t *testing.T) {
	n := 4
	lat := sparse.ZerosDense(n)
	lon := sparse.ZerosDense(n)
	for i := 0; i < n; i++ {
		lat.Elements[i] = float64(i) * 0.1
		lon.Elements[i] = float64(i) * 0.2
	}
	ds := NewDataset()
	ds.Vars["latCell"] = NewDataArray("latCell", []string{"nCells"}, lat)
	ds.Vars["lonCell"] = NewDataArray("lonCell", []string{"nCells"}, lon)

	m, err := DescribeGrid(ds)
	if err != nil {
		t.Fatal(err)
	}
	if m.Detector != "mpas" {
		t.Fatalf("detector: want mpas, have %s", m.Detector)
	}
	if !m.Periodic {
		t.Error("MPAS meshes should be periodic")
	}
	if math.Abs(m.Lat[1]-0.1*180/math.Pi) > 1e-12 {
		t.Errorf("radians should convert to degrees: have %g", m.Lat[1])
	}
}

func TestDescribeGridUGRID(t *testing.T) {
	// A single square split into its four corner nodes.
	nodeLat := sparse.ZerosDense(4)
	nodeLon := sparse.ZerosDense(4)
	copy(nodeLat.Elements, []float64{0, 0, 10, 10})
	copy(nodeLon.Elements, []float64{0, 10, 10, 0})
	conn := sparse.ZerosDense(1, 4)
	copy(conn.Elements, []float64{1, 2, 3, 4}) // one-based

	ds := NewDataset()
	topo := NewDataArray("mesh", []string{"mesh_dim"}, sparse.ZerosDense(1))
	topo.Attrs["cf_role"] = "mesh_topology"
	topo.Attrs["node_coordinates"] = "node_lon node_lat"
	topo.Attrs["face_node_connectivity"] = "face_nodes"
	ds.Vars["mesh"] = topo
	ds.Vars["face_nodes"] = NewDataArray("face_nodes", []string{"nFaces", "maxNodes"}, conn)
	ds.Vars["face_nodes"].Attrs["start_index"] = 1
	ds.Coords["node_lat"] = NewDataArray("node_lat", []string{"node"}, nodeLat)
	ds.Coords["node_lat"].Attrs["standard_name"] = "latitude"
	ds.Coords["node_lon"] = NewDataArray("node_lon", []string{"node"}, nodeLon)
	ds.Coords["node_lon"].Attrs["standard_name"] = "longitude"

	m, err := DescribeGrid(ds)
	if err != nil {
		t.Fatal(err)
	}
	if m.Detector != "ugrid" {
		t.Fatalf("detector: want ugrid, have %s", m.Detector)
	}
	if m.Topology != Mesh {
		t.Errorf("topology: want mesh, have %s", m.Topology)
	}
	if m.Conn == nil || len(m.Conn.FaceNode) != 1 {
		t.Fatal("connectivity not built")
	}
	if want, have := []int{0, 1, 2, 3}, m.Conn.FaceNode[0]; !reflect.DeepEqual(want, have) {
		t.Errorf("start_index not honored: want %v, have %v", want, have)
	}
	tris, face := m.Conn.Triangulate()
	if len(tris) != 2 || face[0] != 0 || face[1] != 0 {
		t.Errorf("quad should split into 2 triangles of face 0; have %d tris, faces %v", len(tris), face)
	}
}

func TestHorizontalDimsExcludeTimeAndVertical(t *testing.T) {
	// A latitude coordinate broadcast over a leading time axis: only the
	// lat dimension is horizontal.
	lat := sparse.ZerosDense(2, 5)
	for i := 0; i < 2; i++ {
		for j := 0; j < 5; j++ {
			lat.Set(float64(10*j), i, j)
		}
	}
	lon := sparse.ZerosDense(4)
	for j := 0; j < 4; j++ {
		lon.Elements[j] = float64(30 * j)
	}
	tc := sparse.ZerosDense(2)
	ds := NewDataset()
	ds.Coords["lat"] = NewDataArray("lat", []string{"time", "lat"}, lat)
	ds.Coords["lat"].Attrs["standard_name"] = "latitude"
	ds.Coords["lon"] = NewDataArray("lon", []string{"lon"}, lon)
	ds.Coords["lon"].Attrs["standard_name"] = "longitude"
	ds.Coords["time"] = NewDataArray("time", []string{"time"}, tc)
	ds.Coords["time"].Attrs["units"] = "days since 2000-01-01"

	m, err := DescribeGrid(ds)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := []string{"lat", "lon"}, m.DimNames; !reflect.DeepEqual(want, have) {
		t.Errorf("dims: want %v, have %v", want, have)
	}
	if m.Topology != Rectilinear {
		t.Errorf("topology: want rectilinear, have %s", m.Topology)
	}
	if want, have := 5, len(m.Lat); want != have {
		t.Errorf("lat samples: want %d, have %d", want, have)
	}
}

func TestDescribeGridNoCoordinates(t *testing.T) {
	ds := NewDataset()
	ds.Vars["v"] = NewDataArray("v", []string{"a", "b"}, sparse.ZerosDense(2, 2))
	_, err := DescribeGrid(ds)
	if err == nil {
		t.Fatal("expected an error for a dataset without spatial coordinates")
	}
	if !strings.Contains(err.Error(), "tried detectors") {
		t.Errorf("error should list the tried detectors; have %q", err.Error())
	}
}

func TestLonPeriodicLazyIndeterminate(t *testing.T) {
	lon := NewLazyDataArray("lon", []string{"lon"}, []int{36}, func() (*sparse.DenseArray, error) {
		t.Fatal("periodicity detection must not materialize lazy coordinates")
		return nil, nil
	})
	if lonPeriodic(lon, nil) {
		t.Error("indeterminate periodicity should report false")
	}
}
