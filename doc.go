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

// Package regrid interpolates geophysical fields between earth-surface grids.
//
// A Regridder is built once from a pair of grid descriptions and applies a
// sparse weight operator to any labeled array carrying the source grid's
// spatial dimensions, broadcasting over the remaining dimensions. Grids are
// recognized from common metadata conventions (CF, UGRID, SCRIP, MPAS, ROMS)
// and may be rectilinear, curvilinear, unstructured meshes, or bare point
// clouds. Weight operators can be persisted to NetCDF files and reused, with
// the stored grid identity validated against the grids at hand.
package regrid

// Version gives the version number.
const Version = "0.1.0"
