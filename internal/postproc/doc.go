// Package postproc implements the post-processing statements of a model:
// drawing export (DXF), geometry export, mesh generation through gmsh and
// property reports. Every action builds the features it refers to before
// producing its output, so actions can run in any order after parsing.
package postproc
