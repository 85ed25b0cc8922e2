// Command keeper watches an epoch resolution program and submits the transactions that move it
// from one epoch to the next.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
