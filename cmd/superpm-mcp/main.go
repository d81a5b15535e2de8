package main

import "github.com/super-pm-ai/superpm-mcp/cmd/superpm-mcp/cmd"

func main() {
	cmd.Execute()
}
