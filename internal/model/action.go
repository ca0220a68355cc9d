// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Action contract for post-processing statements. The
// concrete actions live in package postproc; the model only stores them.
package model

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// Action is a side-effecting consumer of built features.
type Action interface {
	// Kind is the statement keyword, e.g. "DXF" or "gmsh".
	Kind() string
	// Run builds every referenced feature and performs the effect.
	Run(ctx context.Context) error
}

// Reporter is implemented by actions that expose computed values after a
// successful Run, such as SolidProperties.
type Reporter interface {
	Values() (map[string]cty.Value, error)
}
