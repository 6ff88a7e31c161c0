// Command urgency inspects predicted urgency scores against a local Taskwarrior.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCmd(defaultApp(os.Stdout))
	if err := cmd.Execute(); err != nil {
		var drift *driftError
		if !errors.As(err, &drift) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
