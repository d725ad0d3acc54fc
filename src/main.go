package main

import (
	"os"

	"vu/ase/roverconsole/src/cmd"
)

// Used to start the program with the correct arguments
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
