// Package log is a terse operational logger: unadorned one-line
// diagnostics to stdout/stderr, no structured logging framework.
package log

import (
	"fmt"
	"os"
)

func Infof(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}

func Errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
