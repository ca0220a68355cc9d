// Package app contains the core application logic. It loads the workbench
// and the model files, builds their features and runs the post-processing
// actions, independent of the command line that drives it.
package app
