package geom

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const nativeFormat = "iscad-cells"

// nativeFile is the on-disk layout of the .json format.
type nativeFile struct {
	Format     string           `json:"format"`
	Version    int              `json:"version"`
	Axes       [3][]float64     `json:"axes"`
	Cells      string           `json:"cells"`
	FaceGroups map[string][]int `json:"faceGroups,omitempty"`
}

// ExportOptions tunes file export.
type ExportOptions struct {
	// FaceGroups are named face id lists stored with the native format.
	FaceGroups map[string][]int
	// Tolerance is the surface deviation for tessellated formats.
	Tolerance float64
}

// Export writes s to path, choosing the format from the extension.
func Export(s *Shape, path string, opts ExportOptions) error {
	ext := strings.ToLower(filepath.Ext(path))
	var write func(w io.Writer) error
	switch ext {
	case ".json":
		write = func(w io.Writer) error { return writeNative(w, s, opts.FaceGroups) }
	case ".stl":
		write = func(w io.Writer) error { return writeSTL(w, s, strings.TrimSuffix(filepath.Base(path), ext)) }
	default:
		return fmt.Errorf("cannot export to %q: %w", ext, ErrFormat)
	}
	return writeFile(path, write)
}

// Import reads a shape written in the native format.
func Import(path string) (*Shape, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".json" {
		return nil, fmt.Errorf("cannot import %q: %w", ext, ErrFormat)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shape file: %w", err)
	}
	defer f.Close()
	return readNative(f)
}

func writeFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func writeNative(w io.Writer, s *Shape, groups map[string][]int) error {
	for name, ids := range groups {
		for _, id := range ids {
			if err := s.CheckID(Face, id); err != nil {
				return fmt.Errorf("face group %q: %w", name, err)
			}
		}
	}
	nf := nativeFile{Format: nativeFormat, Version: 1, Axes: s.axes, Cells: packCells(s.cells), FaceGroups: groups}
	for d := range nf.Axes {
		if nf.Axes[d] == nil {
			nf.Axes[d] = []float64{}
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(nf)
}

func readNative(r io.Reader) (*Shape, error) {
	var nf nativeFile
	if err := json.NewDecoder(r).Decode(&nf); err != nil {
		return nil, fmt.Errorf("failed to decode shape: %w", err)
	}
	if nf.Format != nativeFormat {
		return nil, fmt.Errorf("unexpected format tag %q: %w", nf.Format, ErrFormat)
	}
	cells, err := unpackCells(nf.Cells)
	if err != nil {
		return nil, err
	}
	want := 1
	for d := 0; d < 3; d++ {
		ax := nf.Axes[d]
		if len(ax) == 1 {
			return nil, fmt.Errorf("axis %d has a single coordinate: %w", d, ErrFormat)
		}
		if !sort.Float64sAreSorted(ax) {
			return nil, fmt.Errorf("axis %d coordinates are not sorted: %w", d, ErrFormat)
		}
		want *= max(len(ax)-1, 0)
	}
	if len(cells) != want {
		return nil, fmt.Errorf("expected %d cells, found %d: %w", want, len(cells), ErrFormat)
	}
	if want == 0 {
		return Empty(), nil
	}
	return canonical(nf.Axes, cells), nil
}

func writeSTL(w io.Writer, s *Shape, name string) error {
	if _, err := fmt.Fprintf(w, "solid %s\n", name); err != nil {
		return err
	}
	for _, fc := range s.topology().faces {
		var n Vec3
		n[fc.axis] = fc.orient
		for _, f := range fc.facets {
			lo, hi := s.facetRect(f)
			u, v := others(f.axis)
			corner := func(a, b float64) Vec3 {
				p := lo
				p[u], p[v] = a, b
				return p
			}
			q := [4]Vec3{
				corner(lo[u], lo[v]), corner(hi[u], lo[v]),
				corner(hi[u], hi[v]), corner(lo[u], hi[v]),
			}
			if q[1].Sub(q[0]).Cross(q[2].Sub(q[0])).Dot(n) < 0 {
				q[1], q[3] = q[3], q[1]
			}
			for _, tri := range [2][3]int{{0, 1, 2}, {0, 2, 3}} {
				if _, err := fmt.Fprintf(w, "  facet normal %g %g %g\n    outer loop\n", n[0], n[1], n[2]); err != nil {
					return err
				}
				for _, i := range tri {
					if _, err := fmt.Fprintf(w, "      vertex %g %g %g\n", q[i][0], q[i][1], q[i][2]); err != nil {
						return err
					}
				}
				if _, err := fmt.Fprint(w, "    endloop\n  endfacet\n"); err != nil {
					return err
				}
			}
		}
	}
	_, err := fmt.Fprintf(w, "endsolid %s\n", name)
	return err
}

// ExportEdgeMesh writes the listed edges as an OpenFOAM featureEdgeMesh.
// Segments longer than maxLen are split.
func ExportEdgeMesh(s *Shape, path string, edges []int, maxLen float64) error {
	for _, e := range edges {
		if err := s.CheckID(Edge, e); err != nil {
			return err
		}
	}
	if maxLen <= 0 {
		maxLen = math.Inf(1)
	}
	var pts []Vec3
	var segs [][2]int
	for _, e := range edges {
		a, b := s.EdgeEnds(e)
		n := 1
		if l := a.Dist(b); !math.IsInf(maxLen, 1) && l > maxLen {
			n = int(math.Ceil(l / maxLen))
		}
		base := len(pts)
		for i := 0; i <= n; i++ {
			pts = append(pts, a.Add(b.Sub(a).Scale(float64(i)/float64(n))))
		}
		for i := 0; i < n; i++ {
			segs = append(segs, [2]int{base + i, base + i + 1})
		}
	}
	return writeFile(path, func(w io.Writer) error {
		fmt.Fprintf(w, "FoamFile {\n version     2.0;\n format      ascii;\n class       featureEdgeMesh;\n location    \"\";\n object      %s;\n}\n", filepath.Base(path))
		fmt.Fprintf(w, "%d\n(\n", len(pts))
		for _, p := range pts {
			fmt.Fprintf(w, "(%g %g %g)\n", p[0], p[1], p[2])
		}
		fmt.Fprintf(w, ")\n%d\n(\n", len(segs))
		for _, sg := range segs {
			fmt.Fprintf(w, "(%d %d)\n", sg[0], sg[1])
		}
		_, err := fmt.Fprint(w, ")\n")
		return err
	})
}
