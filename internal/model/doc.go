// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model holds the result of parsing one ISCAD model file: the symbol
// table of named scalars, vectors, datums, features and selections, the list
// of post-processing actions, and the source locations of everything that
// was defined.
//
// # Core Concepts
//
//   - Model: the symbol table. Default symbols (M_PI, deg, O, EX, EY, EZ, XY,
//     XZ, YZ) are present from the start. Parameters injected from the
//     workbench or the command line are registered as overrides before the
//     file is parsed; later `name = ...` statements for those names are
//     ignored.
//
//   - Modelstep: a feature bound with `name : expr;`. Modelsteps cannot be
//     redefined. Components (`name > expr;`) are modelsteps that are also
//     listed in the component set.
//
//   - Action: a post-processing statement. Actions run after all modelsteps
//     were built, in statement order.
//
//   - SyntaxElementDirectory: source ranges of feature calls, feature symbol
//     references and named definitions, for jump-to-definition.
//
//   - Dependency graph: one node per definition, one edge per symbol a
//     definition refers to. The app builds independent modelsteps in
//     parallel over this graph.
package model
