// Package registry provides the central "glue" for the feature-type system.
//
// The Registry maps the function names used in model files (e.g. "Box" in
// `b: Box(O, 1, 2, 3);`) to the Go code that parses the call's arguments and
// constructs the feature operation. The parser holds a single extension point
// that consults the registry, so new feature types are added by registering a
// module rather than by touching the core grammar.
//
// During application startup, every module in the core list registers its
// types, and the registry is then validated so that a malformed registration
// is reported before any model is parsed.
package registry
