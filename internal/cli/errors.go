package cli

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
)

// ExitError carries the exit status of a child process that ended abnormally.
// It has already been reported, so PrintError prints nothing for it.
type ExitError struct {
	Code int
}

// Error implements error.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the process exit status for err. Codes outside 1-255
// cannot be reported to the parent and become 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 && exitErr.Code <= 255 {
		return exitErr.Code
	}
	return 1
}

// PrintError writes err and any hints attached to it.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return
	}

	fmt.Fprintf(w, "Error: %v\n", err)
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(w, "Hint: %s\n", hint)
	}
}
