// Command geofix reports and repairs (lat, lng) ordered coordinates in the
// dashboard GeoJSON files.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/obras-dashboard/internal/geo/coords"
	"github.com/mohammed-shakir/obras-dashboard/internal/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, out io.Writer) int {
	fl := flag.NewFlagSet("geofix", flag.ContinueOnError)
	fl.SetOutput(out)
	dataDir := fl.String("data", "./data", "data directory")
	fix := fl.Bool("fix", false, "rewrite files with swapped coordinates corrected")
	bbox := fl.String("bbox", "", "city bounds latMin,latMax,lngMin,lngMax (default Cali)")
	files := fl.String("files", "", "comma-separated files relative to -data (default: every .geojson)")
	level := fl.String("log-level", "info", "log level")
	if err := fl.Parse(args); err != nil {
		return 2
	}

	zl := logger.Build(logger.Config{Level: *level, Console: true, Component: "geofix"}, out)

	corr := &coords.Corrector{Box: coords.CaliBBox, Fallback: coords.CaliCenter}
	if *bbox != "" {
		b, err := coords.ParseBBox(*bbox)
		if err != nil {
			zl.Error().Err(err).Msg("invalid -bbox")
			return 2
		}
		corr.Box = b
	}

	var names []string
	for n := range strings.SplitSeq(*files, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	paths, err := listFiles(*dataDir, names)
	if err != nil {
		zl.Error().Err(err).Msg("listing files failed")
		return 1
	}
	if len(paths) == 0 {
		zl.Warn().Str("data", *dataDir).Msg("no .geojson files found")
		return 0
	}

	s := scanner{corr: corr, fix: *fix}
	failed, swapped, invalid := 0, 0, 0
	for _, p := range paths {
		rep := s.scanFile(p)
		logReport(&zl, *dataDir, rep)
		if rep.Err != nil {
			failed++
		}
		swapped += rep.Swapped
		invalid += rep.Invalid
	}

	zl.Info().
		Int("files", len(paths)).
		Int("failed", failed).
		Int("swapped", swapped).
		Int("invalid", invalid).
		Bool("fix", *fix).
		Msg("geofix summary")
	if failed > 0 {
		return 1
	}
	return 0
}

func logReport(zl *zerolog.Logger, root string, rep fileReport) {
	name := rep.Path
	if rel, err := filepath.Rel(root, rep.Path); err == nil {
		name = filepath.ToSlash(rel)
	}
	if rep.Err != nil {
		zl.Error().Err(rep.Err).Str("file", name).Msg("validation failed")
		return
	}
	zl.Info().
		Str("file", name).
		Int("features", rep.Features).
		Int("swapped", rep.Swapped).
		Int("invalid", rep.Invalid).
		Bool("written", rep.Written).
		Msg("checked")
	for _, s := range rep.Samples {
		zl.Warn().
			Str("file", name).
			Int("feature", s.Feature).
			Str("raw", fmt.Sprintf("%g,%g", s.Raw[0], s.Raw[1])).
			Msg("invalid coordinate pair")
	}
}
