// Command chdinfo prints the header summary and metadata chain of a CHD file.
package main

import (
	"fmt"
	"os"

	"github.com/go-chd/chd/chd"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <chd-file>\n", os.Args[0])
		os.Exit(1)
	}
	path := os.Args[1]

	reader, err := chd.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = reader.Close() }()

	if err := reader.WriteSummary(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	entries, err := reader.Metadata()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading metadata: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		return
	}

	fmt.Println("\nMetadata:")
	for i, e := range entries {
		fmt.Printf("  [%d] tag=%s flags=%d length=%d\n", i, e.TagString(), e.Flags, len(e.Data))
	}
}
