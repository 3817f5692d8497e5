// Package preflight checks that bibdex can sync and search before it is
// asked to.
//
// The package validates:
//   - Write permissions and free space in the data directory
//   - File descriptor limits (the search index keeps many segment files open)
//   - The paper directory and the bibliography
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Target{DataDir: dir, PaperDir: papers, BibFile: bibFile})
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
