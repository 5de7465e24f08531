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
	"time"

	"github.com/ctessum/sparse"
)

// GlobalGrid creates a global rectilinear grid dataset with cell centers at
// half-resolution offsets: latitudes in (-90, 90) and longitudes in [0, 360).
// With addBounds, cell edge coordinates lat_b and lon_b are attached and
// linked through the centers' bounds attributes.
func GlobalGrid(resLat, resLon float64, addBounds bool) *Dataset {
	ds := rectGrid(-90, 90, 0, 360, resLat, resLon, addBounds)
	ds.Attrs["history"] = fmt.Sprintf("%s: Created global grid (%gx%g) using regrid.",
		time.Now().Format("2006-01-02 15:04:05"), resLat, resLon)
	return ds
}

// RegionalGrid creates a rectilinear grid dataset covering
// [latMin, latMax] × [lonMin, lonMax], laid out like GlobalGrid.
func RegionalGrid(latMin, latMax, lonMin, lonMax, resLat, resLon float64, addBounds bool) *Dataset {
	ds := rectGrid(latMin, latMax, lonMin, lonMax, resLat, resLon, addBounds)
	ds.Attrs["history"] = fmt.Sprintf("%s: Created regional grid (%gx%g) using regrid.",
		time.Now().Format("2006-01-02 15:04:05"), resLat, resLon)
	return ds
}

func rectGrid(latMin, latMax, lonMin, lonMax, resLat, resLon float64, addBounds bool) *Dataset {
	lat := stepRange(latMin+resLat/2, latMax, resLat)
	lon := stepRange(lonMin+resLon/2, lonMax, resLon)

	ds := NewDataset()
	ds.Coords["lat"] = axisCoord("lat", lat)
	ds.Coords["lat"].Attrs["units"] = "degrees_north"
	ds.Coords["lat"].Attrs["standard_name"] = "latitude"
	ds.Coords["lon"] = axisCoord("lon", lon)
	ds.Coords["lon"].Attrs["units"] = "degrees_east"
	ds.Coords["lon"].Attrs["standard_name"] = "longitude"

	if addBounds {
		latB := stepRange(latMin, latMax+resLat, resLat)
		lonB := stepRange(lonMin, lonMax+resLon, resLon)
		ds.Coords["lat_b"] = axisCoord("lat_b", latB)
		ds.Coords["lat_b"].Attrs["units"] = "degrees_north"
		ds.Coords["lon_b"] = axisCoord("lon_b", lonB)
		ds.Coords["lon_b"].Attrs["units"] = "degrees_east"
		ds.Coords["lat"].Attrs["bounds"] = "lat_b"
		ds.Coords["lon"].Attrs["bounds"] = "lon_b"
	}
	return ds
}

func axisCoord(name string, vals []float64) *DataArray {
	a := sparse.ZerosDense(len(vals))
	copy(a.Elements, vals)
	return NewDataArray(name, []string{name}, a)
}

// stepRange returns start, start+step, ... up to but excluding stop, with a
// tolerance so that spans that are whole multiples of step do not gain or
// lose an element to rounding.
func stepRange(start, stop, step float64) []float64 {
	n := int(math.Ceil((stop-start)/step - 1e-9))
	if n < 0 {
		n = 0
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}
