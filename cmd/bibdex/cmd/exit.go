package cmd

import "fmt"

// Process exit statuses.
const (
	ExitOK        = 0
	ExitFatal     = 1
	ExitCancelled = 2
	ExitNoMatches = 3
)

// ExitError carries a specific exit status out of a command. Err, when set,
// is printed before exiting.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
