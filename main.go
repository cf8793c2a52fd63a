// The main package for the apartments executable.
package main

import (
	"github.com/JakeFAU/apartment-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
