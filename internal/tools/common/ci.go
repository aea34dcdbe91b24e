package common

import (
	"fmt"
	"os"
)

// PrintCIResult writes one machine-greppable line per check plus detail
// lines, for non-interactive pipelines.
func PrintCIResult(ok bool, name string, details []string, err error) {
	status := "PASS"
	if !ok {
		status = "FAIL"
	}
	fmt.Fprintf(os.Stdout, "%s %s\n", status, name)
	for _, d := range details {
		fmt.Fprintf(os.Stdout, "  %s\n", d)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "  error: %v\n", err)
	}
}
