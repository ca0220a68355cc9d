package postproc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vk/iscadgo/internal/geom"
)

// writeGeometry declares the shape bottom-up as gmsh entities. Kernel ids
// map to tags id+1 so that groups can refer to them directly. Edge ends
// without a kernel vertex, holes and cavities get tags after those.
func (sc *meshScript) writeGeometry(b *strings.Builder) {
	s := sc.shape
	lc := num(sc.lmax)

	nv := s.Count(geom.Vertex)
	points := make(map[geom.Vec3]int, nv)
	for v := 0; v < nv; v++ {
		p := s.VertexLocation(v)
		points[p] = v + 1
		fmt.Fprintf(b, "Point(%d) = {%s, %s, %s, %s};\n", v+1, num(p[0]), num(p[1]), num(p[2]), lc)
	}
	nextPoint := nv + len(sc.named) + 1
	pointTag := func(p geom.Vec3) int {
		if tag, ok := points[p]; ok {
			return tag
		}
		tag := nextPoint
		nextPoint++
		points[p] = tag
		fmt.Fprintf(b, "Point(%d) = {%s, %s, %s, %s};\n", tag, num(p[0]), num(p[1]), num(p[2]), lc)
		return tag
	}

	ne := s.Count(geom.Edge)
	ends := make([][2]int, ne)
	for e := 0; e < ne; e++ {
		p0, p1 := s.EdgeEnds(e)
		ends[e] = [2]int{pointTag(p0), pointTag(p1)}
		fmt.Fprintf(b, "Line(%d) = {%d, %d};\n", e+1, ends[e][0], ends[e][1])
	}

	nf := s.Count(geom.Face)
	nextLoop := nf + 1
	for f := 0; f < nf; f++ {
		loops := curveLoops(s.FaceEdges(f), ends)
		// the outer boundary encloses the holes, so its extent is largest
		sort.SliceStable(loops, func(i, j int) bool {
			return loopExtent(s, loops[i]) > loopExtent(s, loops[j])
		})
		tags := make([]int, len(loops))
		for i, loop := range loops {
			tags[i] = f + 1
			if i > 0 {
				tags[i] = nextLoop
				nextLoop++
			}
			fmt.Fprintf(b, "Curve Loop(%d) = {%s};\n", tags[i], tagList(loop))
		}
		fmt.Fprintf(b, "Plane Surface(%d) = {%s};\n", f+1, tagList(tags))
	}

	ns := s.Count(geom.Solid)
	members := make([][]int, ns)
	for f := 0; f < nf; f++ {
		for _, so := range s.FaceSolids(f) {
			members[so] = append(members[so], f)
		}
	}
	nextShell := ns + 1
	for so := 0; so < ns; so++ {
		shells := surfaceLoops(s, members[so])
		sort.SliceStable(shells, func(i, j int) bool {
			return shellExtent(s, shells[i]) > shellExtent(s, shells[j])
		})
		tags := make([]int, len(shells))
		for i, shell := range shells {
			tags[i] = so + 1
			if i > 0 {
				tags[i] = nextShell
				nextShell++
			}
			fmt.Fprintf(b, "Surface Loop(%d) = {%s};\n", tags[i], idList(shell))
		}
		fmt.Fprintf(b, "Volume(%d) = {%s};\n", so+1, tagList(tags))
	}
}

// curveLoops chains the edges of a face into closed loops of signed line
// tags. A negative tag runs the line from its end to its start.
func curveLoops(edges []int, ends [][2]int) [][]int {
	used := make(map[int]bool, len(edges))
	var loops [][]int
	for _, start := range edges {
		if used[start] {
			continue
		}
		used[start] = true
		loop := []int{start + 1}
		first, at := ends[start][0], ends[start][1]
		for at != first {
			e, forward, ok := nextEdge(edges, used, ends, at)
			if !ok {
				break
			}
			used[e] = true
			if forward {
				loop = append(loop, e+1)
				at = ends[e][1]
			} else {
				loop = append(loop, -(e + 1))
				at = ends[e][0]
			}
		}
		loops = append(loops, loop)
	}
	return loops
}

func nextEdge(edges []int, used map[int]bool, ends [][2]int, at int) (int, bool, bool) {
	for _, e := range edges {
		if used[e] {
			continue
		}
		if ends[e][0] == at {
			return e, true, true
		}
		if ends[e][1] == at {
			return e, false, true
		}
	}
	return 0, false, false
}

// surfaceLoops groups the faces of one solid into connected shells.
func surfaceLoops(s *geom.Shape, faces []int) [][]int {
	member := make(map[int]bool, len(faces))
	for _, f := range faces {
		member[f] = true
	}
	seen := make(map[int]bool, len(faces))
	var shells [][]int
	for _, seed := range faces {
		if seen[seed] {
			continue
		}
		seen[seed] = true
		var shell []int
		stack := []int{seed}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			shell = append(shell, f)
			for _, nb := range s.AdjacentFaces(f) {
				if member[nb] && !seen[nb] {
					seen[nb] = true
					stack = append(stack, nb)
				}
			}
		}
		sort.Ints(shell)
		shells = append(shells, shell)
	}
	return shells
}

func loopExtent(s *geom.Shape, loop []int) float64 {
	var pts []geom.Vec3
	for _, tag := range loop {
		e := tag - 1
		if tag < 0 {
			e = -tag - 1
		}
		p0, p1 := s.EdgeEnds(e)
		pts = append(pts, p0, p1)
	}
	return extent(pts)
}

func shellExtent(s *geom.Shape, shell []int) float64 {
	var pts []geom.Vec3
	for _, f := range shell {
		lo, hi := s.FaceBounds(f)
		pts = append(pts, lo, hi)
	}
	return extent(pts)
}

// extent sums the side lengths of the bounding box of pts.
func extent(pts []geom.Vec3) float64 {
	if len(pts) == 0 {
		return 0
	}
	lo, hi := pts[0], pts[0]
	for _, p := range pts[1:] {
		for d := 0; d < 3; d++ {
			lo[d] = min(lo[d], p[d])
			hi[d] = max(hi[d], p[d])
		}
	}
	return (hi[0] - lo[0]) + (hi[1] - lo[1]) + (hi[2] - lo[2])
}

// tagList formats gmsh tags as they are.
func tagList(tags []int) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = strconv.Itoa(t)
	}
	return strings.Join(parts, ", ")
}
