// Package main provides the terminal dashboard entry point for Phalanx.
package main

import (
	"flag"
	"fmt"
	"os"

	"phalanx/internal/tui"
)

var (
	version = "dev"
)

func main() {
	var (
		showVersion bool
		detectURL   string
		policyURL   string
	)

	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.BoolVar(&showVersion, "v", false, "Show version and exit (shorthand)")
	flag.StringVar(&detectURL, "detect", "http://localhost:8001", "Detection service URL")
	flag.StringVar(&detectURL, "d", "http://localhost:8001", "Detection service URL (shorthand)")
	flag.StringVar(&policyURL, "policy", "", "Policy service URL (defaults to the detection service)")
	flag.Parse()

	if showVersion {
		fmt.Printf("phalanx %s\n", version)
		os.Exit(0)
	}

	fmt.Println("Starting Phalanx dashboard...")
	fmt.Printf("Connecting to: %s\n", detectURL)

	if err := tui.Run(detectURL, policyURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
