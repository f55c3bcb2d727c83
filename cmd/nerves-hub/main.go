// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for nerves-hub.
//
// Usage:
//
//	go run ./cmd/nerves-hub [flags]
//	./nerves-hub [flags]
//
// This launches the nerves-hub CLI. See --help for options.
package main

import (
	"log"
	"os"

	"github.com/mike-mehl/nerves-hub-cli/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Printf("nerves-hub error: %v", err)
		os.Exit(1)
	}
}
