// The main package for the listing-crawler executable.
package main

import (
	"github.com/JakeFAU/listing-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
