// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the SyntaxElementDirectory, which links source ranges
// back to the features and symbols they produced. Editors use it to find the
// feature under the cursor and to jump to the statement that defined a name.
package model

import (
	"sort"
	"sync"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/iscadgo/internal/cad"
)

// SyntaxElement is one located piece of source.
type SyntaxElement struct {
	Range   hcl.Range
	Feature *cad.Feature
	// Symbol is set for references to named features.
	Symbol string
}

// SyntaxElementDirectory is safe for concurrent use.
type SyntaxElementDirectory struct {
	mu       sync.RWMutex
	elements []SyntaxElement
	defs     map[string]hcl.Range
}

// NewSyntaxElementDirectory creates an empty directory.
func NewSyntaxElementDirectory() *SyntaxElementDirectory {
	return &SyntaxElementDirectory{defs: make(map[string]hcl.Range)}
}

// Add records a feature call or feature reference.
func (d *SyntaxElementDirectory) Add(el SyntaxElement) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements = append(d.elements, el)
}

// Define records the statement range of a named symbol. A later definition
// of the same name replaces the earlier one.
func (d *SyntaxElementDirectory) Define(name string, rng hcl.Range) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.defs[name] = rng
}

// Definition returns the range of the statement that defined name.
func (d *SyntaxElementDirectory) Definition(name string) (hcl.Range, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rng, ok := d.defs[name]
	return rng, ok
}

// FindAt returns the innermost element whose range contains the byte
// offset.
func (d *SyntaxElementDirectory) FindAt(offset int) (SyntaxElement, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var best SyntaxElement
	found := false
	for _, el := range d.elements {
		if offset < el.Range.Start.Byte || offset >= el.Range.End.Byte {
			continue
		}
		if !found || span(el.Range) < span(best.Range) {
			best, found = el, true
		}
	}
	return best, found
}

// Elements returns all elements ordered by start offset.
func (d *SyntaxElementDirectory) Elements() []SyntaxElement {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := append([]SyntaxElement(nil), d.elements...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Range.Start.Byte < out[j].Range.Start.Byte })
	return out
}

func span(r hcl.Range) int { return r.End.Byte - r.Start.Byte }
