// Command hnswbench builds a graph and a linear index from an embeddings file
// and compares their answers for a held-out query vector.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
