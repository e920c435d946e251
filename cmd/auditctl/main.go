// Package main is the entry point for the auditctl CLI binary.
package main

import (
	"os"

	cli "genie-audit/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
