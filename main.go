// The main package for the pricefetch executable.
package main

import (
	"github.com/JakeFAU/pricefetch/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
