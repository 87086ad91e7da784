// ABOUTME: Entry point for the calendar MCP server
// ABOUTME: Hands off to the cobra command tree

package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
