package config

import (
	"fmt"
	"os"
	"strings"
)

// Exitf writes a formatted error message to stderr and exits with code 1.
// Commands use it for failures that happen before a logger exists.
func Exitf(service string, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	if service = strings.TrimSpace(service); service != "" {
		message = "[" + service + "] " + message
	}
	fmt.Fprintln(os.Stderr, message)
	os.Exit(1)
}
