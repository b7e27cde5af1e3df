package main

import (
	"fmt"
	"os"

	treereplace "github.com/clayflint/tree-replace"
)

func main() {
	if err := treereplace.RunCmd(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
