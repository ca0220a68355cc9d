// Package geom is the reference geometry engine used by the feature graph.
//
// Shapes are finite unions of axis-aligned boxes held on a rectilinear grid
// (one sorted coordinate list per axis plus a cell occupancy bitmap). Every
// shape is kept in canonical form: empty border slabs are trimmed and grid
// planes separating two identical slabs are removed, so two shapes covering
// the same point set have the same grid.
//
// Topology is derived from the grid on first use:
//
//   - Vertex: a lattice point whose 8-octant occupancy pattern is not
//     invariant along any axis.
//   - Edge: a maximal run of crease segments along one axis, split at vertices.
//   - Face: a connected region of coplanar boundary cell faces sharing the
//     same outward normal.
//   - Solid: a face-connected component of occupied cells.
//
// Entity ids are 0-based and follow a deterministic scan order, so the same
// shape always enumerates its entities identically.
//
// Operations the representation cannot express (rotations by angles other
// than multiples of 90 degrees, oblique cutting planes, curved primitives)
// return ErrUnsupported.
package geom
