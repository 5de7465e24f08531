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
	"math"
	"strings"

	"github.com/ctessum/geom"
)

// Topology classifies a horizontal discretization.
type Topology int

const (
	// Rectilinear grids have independent 1-D latitude and longitude axes.
	Rectilinear Topology = iota
	// Curvilinear grids have 2-D latitude and longitude coordinates sharing
	// the same two dimensions.
	Curvilinear
	// Mesh grids are unstructured polygon meshes with face-node connectivity.
	Mesh
	// Cloud grids are bare point sets with 1-D coordinates and no
	// connectivity.
	Cloud
)

func (t Topology) String() string {
	switch t {
	case Rectilinear:
		return "rectilinear"
	case Curvilinear:
		return "curvilinear"
	case Mesh:
		return "mesh"
	case Cloud:
		return "cloud"
	default:
		return fmt.Sprintf("Topology(%d)", int(t))
	}
}

// Connectivity describes the face-node topology of an unstructured mesh,
// normalized to zero-based node indices with fill values removed.
type Connectivity struct {
	// FaceNode holds, for each face, its node indices in winding order.
	FaceNode [][]int
	// NodeLat and NodeLon are the node coordinates in degrees.
	NodeLat, NodeLon []float64
}

// Triangulate returns a triangle decomposition of the mesh along with the
// face each triangle came from. Faces with more than three vertices are split
// by a fan anchored at the first vertex; the decomposition is
// representational, not area-optimal.
func (c *Connectivity) Triangulate() (tris [][3]int, face []int) {
	for f, nodes := range c.FaceNode {
		if len(nodes) < 3 {
			continue
		}
		for i := 1; i < len(nodes)-1; i++ {
			tris = append(tris, [3]int{nodes[0], nodes[i], nodes[i+1]})
			face = append(face, f)
		}
	}
	return tris, face
}

// FacePolygons returns each face as a closed polygon in lon/lat space.
func (c *Connectivity) FacePolygons() []geom.Polygon {
	polys := make([]geom.Polygon, len(c.FaceNode))
	for i, face := range c.FaceNode {
		ring := make([]geom.Point, 0, len(face)+1)
		for _, n := range face {
			ring = append(ring, geom.Point{X: c.NodeLon[n], Y: c.NodeLat[n]})
		}
		if len(face) > 0 {
			ring = append(ring, geom.Point{X: c.NodeLon[face[0]], Y: c.NodeLat[face[0]]})
		}
		polys[i] = geom.Polygon{ring}
	}
	return polys
}

// MeshInfo is an immutable description of a horizontal discretization,
// produced by DescribeGrid. Sample coordinates are used only for weight
// generation and are not needed to apply weights.
type MeshInfo struct {
	Topology Topology

	// DimNames are the dimensions consumed by interpolation: two for
	// rectilinear and curvilinear grids, one for unstructured ones.
	DimNames []string
	// Shape is the spatial shape, parallel to DimNames.
	Shape []int

	// Lat and Lon are sample coordinates in degrees. For rectilinear grids
	// they are the independent axis vectors; otherwise they are flattened
	// cell samples of length Size().
	Lat, Lon []float64

	// LatBounds and LonBounds are rectilinear cell edges (length axis+1),
	// or nil when unavailable.
	LatBounds, LonBounds []float64

	// Conn is the face-node connectivity for Mesh topology, nil otherwise.
	Conn *Connectivity

	// Periodic is the auto-detected longitude periodicity; false when
	// indeterminate.
	Periodic bool

	// Detector names the convention detector that matched.
	Detector string
}

// Size returns the number of cells the interpolation operator addresses.
func (m *MeshInfo) Size() int { return prodInts(m.Shape) }

// A gridDetector attempts to classify a dataset under one naming convention.
// It returns (nil, nil) when the dataset does not match its convention.
type gridDetector struct {
	name   string
	detect func(ds *Dataset) (*MeshInfo, error)
}

// gridDetectors is the detection chain, tried in fixed priority order. The
// conventions with unambiguous markers go first; the CF/heuristic detector is
// the catch-all.
func gridDetectors() []gridDetector {
	return []gridDetector{
		{"ugrid", detectUGRID},
		{"scrip", detectSCRIP},
		{"mpas", detectMPAS},
		{"roms", detectROMS},
		{"cf", detectCF},
	}
}

// DescribeGrid inspects a labeled dataset, discovers its latitude and
// longitude coordinates, and classifies its topology. It returns an error if
// no known convention matches.
func DescribeGrid(ds *Dataset) (*MeshInfo, error) {
	var tried []string
	for _, d := range gridDetectors() {
		m, err := d.detect(ds)
		if err != nil {
			return nil, fmt.Errorf("regrid: %s detector: %w", d.name, err)
		}
		if m != nil {
			m.Detector = d.name
			return m, nil
		}
		tried = append(tried, d.name)
	}
	return nil, fmt.Errorf("regrid: no spatial coordinates found (tried detectors: %s)", strings.Join(tried, ", "))
}

// detectUGRID matches datasets following the UGRID convention: either an
// explicit mesh-topology holder variable or a bare variable with
// cf_role=face_node_connectivity.
func detectUGRID(ds *Dataset) (*MeshInfo, error) {
	var connVar *DataArray
	var nodeCoordNames, faceCoordNames []string

	for _, a := range ds.allArrays() {
		if a.AttrString("cf_role") == "mesh_topology" {
			if v := ds.coord(a.AttrString("face_node_connectivity")); v != nil {
				connVar = v
			}
			nodeCoordNames = strings.Fields(a.AttrString("node_coordinates"))
			faceCoordNames = strings.Fields(a.AttrString("face_coordinates"))
			break
		}
	}
	if connVar == nil {
		for _, a := range ds.allArrays() {
			if a.AttrString("cf_role") == "face_node_connectivity" || a.Name == "face_node_connectivity" {
				connVar = a
				break
			}
		}
	}
	if connVar == nil {
		return nil, nil
	}

	conn, err := buildConnectivity(ds, connVar, nodeCoordNames)
	if err != nil {
		return nil, err
	}

	faceLat, faceLon := findPairByNames(ds, faceCoordNames, "face")
	if faceLat != nil && faceLon != nil {
		dims := horizontalDims(ds, faceLat, faceLon)
		if len(dims) != 1 {
			return nil, fmt.Errorf("face coordinates span %d horizontal dimensions, expected 1", len(dims))
		}
		lat, err := sampleValues(faceLat, dims)
		if err != nil {
			return nil, err
		}
		lon, err := sampleValues(faceLon, dims)
		if err != nil {
			return nil, err
		}
		m := &MeshInfo{
			Topology: Mesh,
			DimNames: dims,
			Shape:    []int{len(lat)},
			Lat:      lat,
			Lon:      lon,
			Conn:     conn,
		}
		m.Periodic = lonPeriodic(faceLon, lon)
		return m, nil
	}

	// No face coordinates: the data lives on the nodes. The node dimension
	// is the spatial dimension and the node coordinates are the samples.
	nodeLatDA, nodeLonDA := findPairByNames(ds, nodeCoordNames, "node")
	if nodeLatDA == nil || nodeLonDA == nil {
		return nil, fmt.Errorf("face-node connectivity %q found but no node coordinates", connVar.Name)
	}
	dims := horizontalDims(ds, nodeLatDA, nodeLonDA)
	if len(dims) != 1 {
		return nil, fmt.Errorf("node coordinates span %d horizontal dimensions, expected 1", len(dims))
	}
	m := &MeshInfo{
		Topology: Mesh,
		DimNames: dims,
		Shape:    []int{len(conn.NodeLat)},
		Lat:      conn.NodeLat,
		Lon:      conn.NodeLon,
		Conn:     conn,
	}
	m.Periodic = lonPeriodic(nodeLonDA, conn.NodeLon)
	return m, nil
}

// buildConnectivity reads a face-node connectivity variable, honoring its
// start_index and fill value, and locates the node coordinates.
func buildConnectivity(ds *Dataset, connVar *DataArray, nodeCoordNames []string) (*Connectivity, error) {
	data, err := connVar.Values()
	if err != nil {
		return nil, fmt.Errorf("reading connectivity %q: %w", connVar.Name, err)
	}
	if len(data.Shape) != 2 {
		return nil, fmt.Errorf("connectivity %q has rank %d, expected 2", connVar.Name, len(data.Shape))
	}
	start := 0
	if v, ok := connVar.Attrs["start_index"]; ok {
		start = int(toFloat(v))
	}
	fill := math.NaN()
	hasFill := false
	if v, ok := connVar.Attrs["_FillValue"]; ok {
		fill = toFloat(v)
		hasFill = true
	}

	nodeLatDA, nodeLonDA := findPairByNames(ds, nodeCoordNames, "node")
	if nodeLatDA == nil || nodeLonDA == nil {
		// Fall back to any point-like coordinate pair that is not on the
		// face dimension.
		nodeLatDA, nodeLonDA = findPairByNames(ds, nil, "pts")
	}
	if nodeLatDA == nil || nodeLonDA == nil {
		return nil, fmt.Errorf("connectivity %q: node coordinates not found", connVar.Name)
	}
	nodeDims := horizontalDims(ds, nodeLatDA, nodeLonDA)
	nodeLat, err := sampleValues(nodeLatDA, nodeDims)
	if err != nil {
		return nil, err
	}
	nodeLon, err := sampleValues(nodeLonDA, nodeDims)
	if err != nil {
		return nil, err
	}

	nFace, maxNodes := data.Shape[0], data.Shape[1]
	faces := make([][]int, nFace)
	for i := 0; i < nFace; i++ {
		face := make([]int, 0, maxNodes)
		for j := 0; j < maxNodes; j++ {
			v := data.Get(i, j)
			if hasFill && v == fill {
				continue
			}
			n := int(v) - start
			if n < 0 || n >= len(nodeLat) {
				return nil, fmt.Errorf("connectivity %q: node index %d out of range [0, %d)", connVar.Name, n, len(nodeLat))
			}
			face = append(face, n)
		}
		faces[i] = face
	}
	return &Connectivity{FaceNode: faces, NodeLat: nodeLat, NodeLon: nodeLon}, nil
}

// detectSCRIP matches SCRIP-format grid files (grid_center_lat/lon).
func detectSCRIP(ds *Dataset) (*MeshInfo, error) {
	lat := ds.coord("grid_center_lat")
	lon := ds.coord("grid_center_lon")
	if lat == nil || lon == nil {
		return nil, nil
	}
	dims := horizontalDims(ds, lat, lon)
	latV, err := sampleValues(lat, dims)
	if err != nil {
		return nil, err
	}
	lonV, err := sampleValues(lon, dims)
	if err != nil {
		return nil, err
	}
	maybeRadiansToDegrees(lat, latV)
	maybeRadiansToDegrees(lon, lonV)
	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[i] = lat.Size(d)
	}
	return &MeshInfo{
		Topology: Cloud,
		DimNames: dims,
		Shape:    shape,
		Lat:      latV,
		Lon:      lonV,
		Periodic: lonPeriodic(lon, lonV),
	}, nil
}

// detectMPAS matches MPAS output (latCell/lonCell, in radians).
func detectMPAS(ds *Dataset) (*MeshInfo, error) {
	lat := ds.coord("latCell")
	lon := ds.coord("lonCell")
	if lat == nil || lon == nil {
		return nil, nil
	}
	dims := horizontalDims(ds, lat, lon)
	if len(dims) != 1 {
		return nil, fmt.Errorf("latCell spans %d horizontal dimensions, expected 1", len(dims))
	}
	latV, err := sampleValues(lat, dims)
	if err != nil {
		return nil, err
	}
	lonV, err := sampleValues(lon, dims)
	if err != nil {
		return nil, err
	}
	// MPAS coordinates are radians unless the file says otherwise.
	if !strings.Contains(strings.ToLower(lat.AttrString("units")), "degree") {
		radiansToDegrees(latV)
		radiansToDegrees(lonV)
	}
	return &MeshInfo{
		Topology: Cloud,
		DimNames: dims,
		Shape:    []int{len(latV)},
		Lat:      latV,
		Lon:      lonV,
		Periodic: true, // MPAS meshes are global.
	}, nil
}

// detectROMS matches ROMS rho-point grids (lat_rho/lon_rho).
func detectROMS(ds *Dataset) (*MeshInfo, error) {
	lat := ds.coord("lat_rho")
	lon := ds.coord("lon_rho")
	if lat == nil || lon == nil {
		return nil, nil
	}
	return classifyLatLon(ds, lat, lon)
}

// detectCF is the catch-all detector: CF metadata, then name heuristics, then
// a value-range fallback, over rectilinear, curvilinear, and point-cloud
// layouts. IOAPI files land here too once their lat/lon coordinates are
// present.
func detectCF(ds *Dataset) (*MeshInfo, error) {
	lat, lon := findLatLon(ds)
	if lat == nil || lon == nil {
		return nil, nil
	}
	return classifyLatLon(ds, lat, lon)
}

// classifyLatLon determines the topology implied by a discovered coordinate
// pair.
func classifyLatLon(ds *Dataset, lat, lon *DataArray) (*MeshInfo, error) {
	dims := horizontalDims(ds, lat, lon)
	switch len(dims) {
	case 2:
		latDims := horizontalDimsOf(ds, lat)
		lonDims := horizontalDimsOf(ds, lon)
		if len(latDims) == 1 && len(lonDims) == 1 && latDims[0] != lonDims[0] {
			// Independent axes.
			latV, err := sampleValues(lat, latDims)
			if err != nil {
				return nil, err
			}
			lonV, err := sampleValues(lon, lonDims)
			if err != nil {
				return nil, err
			}
			m := &MeshInfo{
				Topology: Rectilinear,
				DimNames: []string{latDims[0], lonDims[0]},
				Shape:    []int{len(latV), len(lonV)},
				Lat:      latV,
				Lon:      lonV,
				Periodic: lonPeriodic(lon, lonV),
			}
			m.LatBounds = axisBounds(ds, lat, latV)
			m.LonBounds = axisBounds(ds, lon, lonV)
			return m, nil
		}
		// Both coordinates share the same two dimensions.
		latV, err := sampleValues(lat, dims)
		if err != nil {
			return nil, err
		}
		lonV, err := sampleValues(lon, dims)
		if err != nil {
			return nil, err
		}
		shape := make([]int, len(dims))
		for i, d := range dims {
			shape[i] = lat.Size(d)
			if shape[i] < 0 {
				shape[i] = lon.Size(d)
			}
		}
		return &MeshInfo{
			Topology: Curvilinear,
			DimNames: dims,
			Shape:    shape,
			Lat:      latV,
			Lon:      lonV,
			Periodic: lonPeriodic(lon, lonV),
		}, nil
	case 1:
		latV, err := sampleValues(lat, dims)
		if err != nil {
			return nil, err
		}
		lonV, err := sampleValues(lon, dims)
		if err != nil {
			return nil, err
		}
		return &MeshInfo{
			Topology: Cloud,
			DimNames: dims,
			Shape:    []int{len(latV)},
			Lat:      latV,
			Lon:      lonV,
			Periodic: lonPeriodic(lon, lonV),
		}, nil
	default:
		return nil, fmt.Errorf("coordinates %q and %q span %d horizontal dimensions; expected 1 or 2", lat.Name, lon.Name, len(dims))
	}
}

// latNameHints and lonNameHints are ordered coordinate-name heuristics,
// covering CF, IOAPI, ROMS, and model-output habits.
var (
	latNameHints = []string{"lat", "latitude", "nav_lat", "lat_rho", "latCell", "grid_center_lat", "yc", "y"}
	lonNameHints = []string{"lon", "longitude", "nav_lon", "lon_rho", "lonCell", "grid_center_lon", "xc", "x"}
)

// findLatLon locates the latitude and longitude coordinates of a dataset:
// CF metadata first, then name heuristics, then a value-range fallback on
// eager numeric coordinates.
func findLatLon(ds *Dataset) (lat, lon *DataArray) {
	// Pass 1: CF metadata.
	for _, a := range ds.allArrays() {
		switch {
		case lat == nil && isLatByAttrs(a):
			lat = a
		case lon == nil && isLonByAttrs(a):
			lon = a
		}
	}
	// Pass 2: name heuristics.
	if lat == nil {
		lat = findByNameHints(ds, latNameHints, "lat")
	}
	if lon == nil {
		lon = findByNameHints(ds, lonNameHints, "lon")
	}
	// Pass 3: value-range fallback over eager coordinates. Latitude must fit
	// in [-90, 90]; longitude in [-360, 720]. Names containing y/x break
	// ties.
	if lat == nil || lon == nil {
		for _, name := range sortedKeys(ds.Coords) {
			c := ds.Coords[name]
			if !c.Loaded() || len(c.Dims) == 0 {
				continue
			}
			if lat == nil && c != lon && valuesWithin(c, -90, 90) && strings.Contains(name, "y") {
				lat = c
			} else if lon == nil && c != lat && valuesWithin(c, -360, 720) && strings.Contains(name, "x") {
				lon = c
			}
		}
	}
	if lat == nil || lon == nil {
		for _, name := range sortedKeys(ds.Coords) {
			c := ds.Coords[name]
			if !c.Loaded() || len(c.Dims) == 0 || c == lat || c == lon {
				continue
			}
			if lat == nil && valuesWithin(c, -90, 90) {
				lat = c
			} else if lon == nil && valuesWithin(c, -360, 720) {
				lon = c
			}
		}
	}
	if lat == nil || lon == nil {
		return nil, nil
	}
	return lat, lon
}

func isLatByAttrs(a *DataArray) bool {
	if a.AttrString("standard_name") == "latitude" {
		return true
	}
	u := strings.ToLower(a.AttrString("units"))
	return u == "degrees_north" || u == "degree_north" || u == "degrees_n"
}

func isLonByAttrs(a *DataArray) bool {
	if a.AttrString("standard_name") == "longitude" {
		return true
	}
	u := strings.ToLower(a.AttrString("units"))
	return u == "degrees_east" || u == "degree_east" || u == "degrees_e"
}

func findByNameHints(ds *Dataset, hints []string, substr string) *DataArray {
	for _, h := range hints {
		if c := ds.coord(h); c != nil {
			return c
		}
	}
	// Substring match, deterministically ordered.
	for _, name := range sortedKeys(ds.Coords) {
		if strings.Contains(strings.ToLower(name), substr) {
			return ds.Coords[name]
		}
	}
	return nil
}

// findPairByNames returns the lat/lon pair named in names (a UGRID
// "lon lat"-style list), or, when names is empty, a pair discovered by the
// given substring marker (e.g. "face", "node").
func findPairByNames(ds *Dataset, names []string, marker string) (lat, lon *DataArray) {
	for _, n := range names {
		c := ds.coord(n)
		if c == nil {
			continue
		}
		switch {
		case isLatByAttrs(c) || strings.Contains(strings.ToLower(n), "lat"):
			lat = c
		case isLonByAttrs(c) || strings.Contains(strings.ToLower(n), "lon"):
			lon = c
		}
	}
	if lat != nil && lon != nil {
		return lat, lon
	}
	for _, name := range sortedKeys(ds.Coords) {
		lname := strings.ToLower(name)
		if !strings.Contains(lname, marker) {
			continue
		}
		c := ds.Coords[name]
		if lat == nil && strings.Contains(lname, "lat") {
			lat = c
		} else if lon == nil && strings.Contains(lname, "lon") {
			lon = c
		}
	}
	if lat == nil || lon == nil {
		return nil, nil
	}
	return lat, lon
}

func valuesWithin(c *DataArray, lo, hi float64) bool {
	data, err := c.Values()
	if err != nil {
		return false
	}
	for _, v := range data.Elements {
		if math.IsNaN(v) || v < lo || v > hi {
			return false
		}
	}
	return len(data.Elements) > 0
}

// horizontalDims returns the union of the genuinely horizontal dimensions of
// a coordinate pair, preserving encounter order (latitude first).
func horizontalDims(ds *Dataset, lat, lon *DataArray) []string {
	seen := make(map[string]bool)
	var dims []string
	for _, c := range []*DataArray{lat, lon} {
		for _, d := range horizontalDimsOf(ds, c) {
			if !seen[d] {
				seen[d] = true
				dims = append(dims, d)
			}
		}
	}
	return dims
}

// horizontalDimsOf filters a coordinate's dimensions down to horizontal axes.
// A dimension shared with a time-like or vertical coordinate is excluded even
// though it co-occurs in the coordinate array (e.g. a lat coordinate
// broadcast over a leading time axis).
func horizontalDimsOf(ds *Dataset, c *DataArray) []string {
	var dims []string
	for _, d := range c.Dims {
		if isNonHorizontalDim(ds, d) {
			continue
		}
		dims = append(dims, d)
	}
	return dims
}

// isNonHorizontalDim reports whether dimension d is indexed by a time-like or
// vertical 1-D coordinate.
func isNonHorizontalDim(ds *Dataset, d string) bool {
	for _, c := range ds.allArrays() {
		if len(c.Dims) != 1 || c.Dims[0] != d {
			continue
		}
		if isTimeLike(c) || isVerticalLike(c) {
			return true
		}
	}
	return false
}

func isTimeLike(c *DataArray) bool {
	if c.AttrString("standard_name") == "time" || c.Attrs["calendar"] != nil {
		return true
	}
	if strings.Contains(strings.ToLower(c.AttrString("units")), " since ") {
		return true
	}
	// Name fallback, standing in for a datetime dtype check.
	return strings.Contains(strings.ToLower(c.Name), "time")
}

var verticalStandardNames = map[string]bool{
	"altitude":                    true,
	"height":                      true,
	"depth":                       true,
	"air_pressure":                true,
	"model_level_number":          true,
	"atmosphere_sigma_coordinate": true,
	"atmosphere_hybrid_sigma_pressure_coordinate": true,
}

var verticalNames = map[string]bool{
	"lev": true, "level": true, "levels": true, "plev": true, "z": true,
	"height": true, "depth": true, "altitude": true, "bottom_top": true,
	"ilev": true, "sigma": true,
}

func isVerticalLike(c *DataArray) bool {
	if verticalStandardNames[c.AttrString("standard_name")] {
		return true
	}
	if p := strings.ToLower(c.AttrString("positive")); p == "up" || p == "down" {
		return true
	}
	switch strings.ToLower(c.AttrString("units")) {
	case "pa", "hpa", "mb", "millibar":
		return true
	}
	return verticalNames[strings.ToLower(c.Name)]
}

// sampleValues materializes a coordinate and flattens it over the given
// dimensions, taking the first slice along any other (non-horizontal)
// dimension. The flattening follows the coordinate's own dimension order.
func sampleValues(c *DataArray, dims []string) ([]float64, error) {
	data, err := c.Values()
	if err != nil {
		return nil, fmt.Errorf("regrid: materializing coordinate %q: %w", c.Name, err)
	}
	keep := make([]bool, len(c.Dims))
	n := 1
	for i, d := range c.Dims {
		for _, dd := range dims {
			if d == dd {
				keep[i] = true
				n *= data.Shape[i]
			}
		}
	}
	out := make([]float64, 0, n)
	idx := make([]int, len(c.Dims))
	for {
		out = append(out, data.Get(idx...))
		// Advance the kept indices, row-major.
		i := len(idx) - 1
		for ; i >= 0; i-- {
			if !keep[i] {
				continue
			}
			idx[i]++
			if idx[i] < data.Shape[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return out, nil
}

// axisBounds returns the cell edges of a 1-D axis: the coordinate named by
// the CF bounds attribute if present, otherwise midpoint-generated edges.
func axisBounds(ds *Dataset, c *DataArray, axis []float64) []float64 {
	if bname := c.AttrString("bounds"); bname != "" {
		if b := ds.coord(bname); b != nil {
			if data, err := b.Values(); err == nil && len(data.Shape) == 1 && len(data.Elements) == len(axis)+1 {
				out := make([]float64, len(data.Elements))
				copy(out, data.Elements)
				return out
			}
		}
	}
	if len(axis) < 2 {
		return nil
	}
	out := make([]float64, len(axis)+1)
	for i := 1; i < len(axis); i++ {
		out[i] = 0.5 * (axis[i-1] + axis[i])
	}
	out[0] = axis[0] - 0.5*(axis[1]-axis[0])
	out[len(axis)] = axis[len(axis)-1] + 0.5*(axis[len(axis)-1]-axis[len(axis)-2])
	return out
}

// lonPeriodic auto-detects longitude periodicity. It inspects boundary
// attributes first and the longitude span second, and never materializes a
// lazily-backed coordinate; when indeterminate it reports false.
func lonPeriodic(lon *DataArray, values []float64) bool {
	switch strings.ToLower(lon.AttrString("boundary")) {
	case "periodic", "circular":
		return true
	}
	switch strings.ToLower(lon.AttrString("topology")) {
	case "periodic", "circular":
		return true
	}
	if !lon.Loaded() || len(values) < 2 {
		return false
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	// For an evenly spaced axis, span + one cell ≈ 360° means global.
	dlon := (hi - lo) / float64(len(values)-1)
	return hi-lo+dlon >= 360-1e-6
}

func maybeRadiansToDegrees(c *DataArray, v []float64) {
	if strings.Contains(strings.ToLower(c.AttrString("units")), "radian") {
		radiansToDegrees(v)
	}
}

func radiansToDegrees(v []float64) {
	for i := range v {
		v[i] *= 180 / math.Pi
	}
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case []float64:
		if len(x) > 0 {
			return x[0]
		}
	case []float32:
		if len(x) > 0 {
			return float64(x[0])
		}
	case []int32:
		if len(x) > 0 {
			return float64(x[0])
		}
	}
	return math.NaN()
}
