// Package cli turns command-line arguments into an app.Config. It owns the
// cobra command tree and maps usage errors onto exit codes.
package cli
