// Package dag tracks the dependencies between the named symbols of a model
// and runs work over them concurrently in dependency order.
//
// The parser adds one node per named statement and one edge per symbol the
// statement refers to. The app uses the graph to build independent
// modelsteps in parallel and to report which symbols a parameter change
// affects.
package dag
