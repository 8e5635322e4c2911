package config

import (
	"fmt"
	"os"
)

// exit is swapped in tests that cannot fork a subprocess.
var exit = os.Exit

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	exit(1)
}

// ExitOnError exits through Exitf when err is non-nil, prefixing the message
// with the failed step.
func ExitOnError(step string, err error) {
	if err == nil {
		return
	}
	Exitf("%s: %v", step, err)
}
