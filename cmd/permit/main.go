// Command permit plans, rehearses and validates runtime permission requests.
package main

import (
	"fmt"
	"os"

	"github.com/go-drift/permit/cmd/permit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
