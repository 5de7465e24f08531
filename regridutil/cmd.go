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

// Package regridutil wires the regrid library into a command-line
// application, with configuration through a file, flags, or environment
// variables.
package regridutil

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/regrid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to regrid.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "SourceGrid",
			usage: `
              SourceGrid is the path to a NetCDF file describing the source
              grid. When empty, the source grid is taken from the input data
              file itself.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), weightsCmd.Flags(), reportCmd.Flags()},
		},
		{
			name: "TargetGrid",
			usage: `
              TargetGrid is the path to a NetCDF file describing the target
              grid.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), weightsCmd.Flags(), reportCmd.Flags()},
		},
		{
			name: "InputFile",
			usage: `
              InputFile is the path to the NetCDF data file to be regridded.`,
			shorthand:  "i",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path where the regridded NetCDF data is
              written.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Method",
			usage: `
              Method is the interpolation method: bilinear, conservative,
              nearest_s2d, nearest_d2s, or patch.`,
			shorthand:  "m",
			defaultVal: "bilinear",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), weightsCmd.Flags(), reportCmd.Flags()},
		},
		{
			name: "Periodic",
			usage: `
              Periodic sets longitude periodicity: auto, true, or false.`,
			defaultVal: "auto",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), weightsCmd.Flags(), reportCmd.Flags()},
		},
		{
			name: "ExtrapMethod",
			usage: `
              ExtrapMethod extrapolates destination cells outside the source
              domain: nearest_s2d or nearest_idw. Empty disables
              extrapolation.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), weightsCmd.Flags(), reportCmd.Flags()},
		},
		{
			name: "ExtrapDistExponent",
			usage: `
              ExtrapDistExponent is the inverse-distance exponent used by the
              nearest_idw extrapolation method.`,
			defaultVal: 2.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), weightsCmd.Flags(), reportCmd.Flags()},
		},
		{
			name: "SkipNA",
			usage: `
              SkipNA renormalizes weights around missing (NaN) input values
              instead of letting them poison every destination cell they
              touch.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "NAThreshold",
			usage: `
              NAThreshold is the maximum tolerated missing weight fraction
              per destination cell when SkipNA is enabled; cells beyond it
              become NaN.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "WeightFile",
			usage: `
              WeightFile is the path where generated interpolation weights
              are saved, or, with ReuseWeights, loaded from.`,
			shorthand:  "w",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), weightsCmd.Flags(), reportCmd.Flags()},
		},
		{
			name: "ReuseWeights",
			usage: `
              ReuseWeights loads weights from WeightFile instead of
              regenerating them, after validating that the stored grid
              identity matches the current grids.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), reportCmd.Flags()},
		},
		{
			name: "ChunkSize",
			usage: `
              ChunkSize is the number of non-spatial (e.g. time) slices
              processed per task. Zero divides the work evenly among the
              workers.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers bounds the number of concurrent regridding tasks. Zero
              uses all processors.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Grid.ResLat",
			usage: `
              Grid.ResLat is the latitude resolution in degrees of the grid
              to be created.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{gridCmd.Flags()},
		},
		{
			name: "Grid.ResLon",
			usage: `
              Grid.ResLon is the longitude resolution in degrees of the grid
              to be created.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{gridCmd.Flags()},
		},
		{
			name: "Grid.Bounds",
			usage: `
              Grid.Bounds is the regional extent of the grid to be created,
              as latMin,latMax,lonMin,lonMax. Empty creates a global grid.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{gridCmd.Flags()},
		},
		{
			name: "Grid.AddBounds",
			usage: `
              Grid.AddBounds adds cell-edge coordinates to the created grid,
              as required by the conservative method.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{gridCmd.Flags()},
		},
		{
			name: "Grid.OutputFile",
			usage: `
              Grid.OutputFile is the path where the created grid is written.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{gridCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("REGRID")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(weightsCmd)
	Root.AddCommand(reportCmd)
	Root.AddCommand(gridCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("regrid: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "regrid",
	Short: "Regrid geophysical data between earth-surface grids.",
	Long: `regrid interpolates gridded geophysical data between earth-surface
grids using precomputed sparse weight operators. Use the subcommands specified
below to access the functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'REGRID_var' where 'var' is
the name of the variable to be set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of regrid.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("regrid v%s\n", regrid.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Regrid a data file onto a target grid.",
	Long: `run reads InputFile, builds (or reuses) an interpolation operator
from its grid to TargetGrid, applies it to every spatial variable, and writes
the result to OutputFile. Variables without the source grid's spatial
dimensions pass through unchanged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Run(Cfg)
	},
	DisableAutoGenTag: true,
}

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Generate interpolation weights and save them to a file.",
	Long: `weights builds the interpolation operator between SourceGrid and
TargetGrid and saves it to WeightFile for later reuse, without regridding any
data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return GenerateWeights(Cfg)
	},
	DisableAutoGenTag: true,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a weight-quality report.",
	Long: `report builds (or reuses) the interpolation operator between
SourceGrid and TargetGrid and prints its quality summary as JSON: unmapped
destination cells and the spread of the per-cell weight sums.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := NewRegridderFromConfig(Cfg)
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(r.QualityReport(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	},
	DisableAutoGenTag: true,
}

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Create a rectilinear grid file.",
	Long: `grid creates a global or regional rectilinear grid at the requested
resolution and writes it to a NetCDF file, for use as a regridding target.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return CreateGrid(Cfg)
	},
	DisableAutoGenTag: true,
}

// Log is the logger used by the commands in this package.
var Log = logrus.StandardLogger()

func init() {
	Log.SetOutput(os.Stderr)
	Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
