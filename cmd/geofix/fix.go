package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/obras-dashboard/internal/dataset"
	"github.com/mohammed-shakir/obras-dashboard/internal/geo/coords"
)

const maxInvalidSamples = 10

type invalidPair struct {
	Feature int
	Raw     orb.Point
}

type fileReport struct {
	Path     string
	Features int
	Swapped  int
	Invalid  int
	Samples  []invalidPair
	Err      error
	Written  bool
}

type scanner struct {
	corr *coords.Corrector
	fix  bool
}

// listFiles returns the .geojson files under root, or the named ones.
func listFiles(root string, names []string) ([]string, error) {
	if len(names) > 0 {
		out := make([]string, 0, len(names))
		for _, n := range names {
			out = append(out, filepath.Join(root, filepath.FromSlash(n)))
		}
		return out, nil
	}
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".geojson") {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}

func (s scanner) scanFile(path string) fileReport {
	rep := fileReport{Path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		rep.Err = err
		return rep
	}
	fc, err := dataset.DecodeFeatureCollection(raw)
	if err != nil {
		rep.Err = err
		return rep
	}
	rep.Features = len(fc.Features)
	changed := false
	for i, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		f.Geometry = walk(orb.Clone(f.Geometry), func(p *orb.Point) {
			out, o := s.corr.Correct(*p)
			switch o {
			case coords.Swapped:
				rep.Swapped++
				*p = out
				changed = true
			case coords.Invalid:
				rep.Invalid++
				if len(rep.Samples) < maxInvalidSamples {
					rep.Samples = append(rep.Samples, invalidPair{Feature: i, Raw: *p})
				}
			}
		})
	}
	if !s.fix || !changed {
		return rep
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		rep.Err = fmt.Errorf("encode: %w", err)
		return rep
	}
	if err := writeAtomic(path, b); err != nil {
		rep.Err = err
		return rep
	}
	rep.Written = true
	return rep
}

// walk visits every vertex of g and returns g with the rewritten vertices.
func walk(g orb.Geometry, fn func(*orb.Point)) orb.Geometry {
	switch t := g.(type) {
	case orb.Point:
		fn(&t)
		return t
	case orb.MultiPoint:
		for i := range t {
			fn(&t[i])
		}
	case orb.LineString:
		for i := range t {
			fn(&t[i])
		}
	case orb.Ring:
		for i := range t {
			fn(&t[i])
		}
	case orb.MultiLineString:
		for i := range t {
			walk(t[i], fn)
		}
	case orb.Polygon:
		for i := range t {
			walk(t[i], fn)
		}
	case orb.MultiPolygon:
		for i := range t {
			walk(t[i], fn)
		}
	case orb.Collection:
		for i := range t {
			t[i] = walk(t[i], fn)
		}
	}
	return g
}

func writeAtomic(path string, b []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".geofix-*")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
