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

package regridutil

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/regrid"
	"github.com/spf13/cast"
)

// optionsFromConfig translates configuration values into engine options.
func optionsFromConfig(cfg *viper.Viper) (regrid.Options, error) {
	var o regrid.Options
	m, err := regrid.ParseMethod(cfg.GetString("Method"))
	if err != nil {
		return o, err
	}
	o.Method = m

	switch p := strings.ToLower(cfg.GetString("Periodic")); p {
	case "auto", "":
	case "true", "false":
		v := p == "true"
		o.Periodic = &v
	default:
		return o, fmt.Errorf("regrid: Periodic must be auto, true, or false; got %q", p)
	}

	em, err := regrid.ParseExtrapMethod(cfg.GetString("ExtrapMethod"))
	if err != nil {
		return o, err
	}
	o.ExtrapMethod = em
	o.ExtrapDistExponent = cfg.GetFloat64("ExtrapDistExponent")

	o.SkipNA = cfg.GetBool("SkipNA")
	thres := cfg.GetFloat64("NAThreshold")
	o.NAThreshold = &thres
	o.Filename = os.ExpandEnv(cfg.GetString("WeightFile"))
	o.ReuseWeights = cfg.GetBool("ReuseWeights")
	o.Workers = cfg.GetInt("Workers")
	return o, nil
}

// NewRegridderFromConfig builds an engine from the configured source and
// target grid files.
func NewRegridderFromConfig(cfg *viper.Viper) (*regrid.Regridder, error) {
	srcPath := os.ExpandEnv(cfg.GetString("SourceGrid"))
	if srcPath == "" {
		srcPath = os.ExpandEnv(cfg.GetString("InputFile"))
	}
	if srcPath == "" {
		return nil, fmt.Errorf("regrid: either SourceGrid or InputFile must be specified")
	}
	dstPath := os.ExpandEnv(cfg.GetString("TargetGrid"))
	if dstPath == "" {
		return nil, fmt.Errorf("regrid: TargetGrid must be specified")
	}
	src, err := regrid.ReadDataset(srcPath)
	if err != nil {
		return nil, err
	}
	dst, err := regrid.ReadDataset(dstPath)
	if err != nil {
		return nil, err
	}
	o, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return regrid.NewRegridder(src, dst, o)
}

// Run regrids InputFile onto TargetGrid and writes the result to OutputFile.
func Run(cfg *viper.Viper) error {
	inPath := os.ExpandEnv(cfg.GetString("InputFile"))
	outPath := os.ExpandEnv(cfg.GetString("OutputFile"))
	if inPath == "" || outPath == "" {
		return fmt.Errorf("regrid: InputFile and OutputFile must be specified")
	}

	r, err := NewRegridderFromConfig(cfg)
	if err != nil {
		return err
	}
	Log.WithField("regridder", r.String()).Info("built regridding engine")

	in, err := regrid.ReadDataset(inPath)
	if err != nil {
		return err
	}
	out, err := r.ApplyDatasetChunked(context.Background(), in, cfg.GetInt("ChunkSize"))
	if err != nil {
		return err
	}
	if err := regrid.WriteDataset(outPath, out); err != nil {
		return err
	}
	Log.WithFields(map[string]interface{}{
		"input":  inPath,
		"output": outPath,
	}).Info("finished regridding")
	return nil
}

// GenerateWeights builds the interpolation operator between SourceGrid and
// TargetGrid and saves it to WeightFile.
func GenerateWeights(cfg *viper.Viper) error {
	path := os.ExpandEnv(cfg.GetString("WeightFile"))
	if path == "" {
		return fmt.Errorf("regrid: WeightFile must be specified")
	}
	if cfg.GetString("SourceGrid") == "" {
		return fmt.Errorf("regrid: SourceGrid must be specified")
	}
	r, err := NewRegridderFromConfig(cfg)
	if err != nil {
		return err
	}
	if err := regrid.SaveWeights(path, r.Weights()); err != nil {
		return err
	}
	rep := r.Report()
	Log.WithFields(map[string]interface{}{
		"file":      path,
		"n_weights": rep.NWeights,
		"unmapped":  rep.UnmappedCount,
	}).Info("saved weights")
	return nil
}

// CreateGrid creates a global or regional rectilinear grid file.
func CreateGrid(cfg *viper.Viper) error {
	outPath := os.ExpandEnv(cfg.GetString("Grid.OutputFile"))
	if outPath == "" {
		return fmt.Errorf("regrid: Grid.OutputFile must be specified")
	}
	resLat := cfg.GetFloat64("Grid.ResLat")
	resLon := cfg.GetFloat64("Grid.ResLon")
	addBounds := cfg.GetBool("Grid.AddBounds")

	var ds *regrid.Dataset
	if b := cfg.GetString("Grid.Bounds"); b != "" {
		parts := strings.Split(b, ",")
		if len(parts) != 4 {
			return fmt.Errorf("regrid: Grid.Bounds must be latMin,latMax,lonMin,lonMax; got %q", b)
		}
		vals := make([]float64, 4)
		for i, p := range parts {
			v, err := cast.ToFloat64E(strings.TrimSpace(p))
			if err != nil {
				return fmt.Errorf("regrid: Grid.Bounds: %v", err)
			}
			vals[i] = v
		}
		ds = regrid.RegionalGrid(vals[0], vals[1], vals[2], vals[3], resLat, resLon, addBounds)
	} else {
		ds = regrid.GlobalGrid(resLat, resLon, addBounds)
	}
	if err := regrid.WriteDataset(outPath, ds); err != nil {
		return err
	}
	Log.WithField("file", outPath).Info("created grid")
	return nil
}
