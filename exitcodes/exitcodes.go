// Package exitcodes defines the standard exit codes used by matrixrun.
package exitcodes

// Exit code constants used by matrixrun
// These constants define the exit codes that the application uses to
// indicate various states when it exits:
//
// * Success (0): Used when the run verdict is succeeding
// * RunFailure (1): Used when one or more non-optional jobs fail
// * RuntimeErr (2): Used for configuration errors, panics or other
//   failures that prevent the matrix from running at all
const (
	Success    = 0 // Run verdict succeeding
	RunFailure = 1 // Non-optional job failures
	RuntimeErr = 2 // Configuration or runtime errors
)
