// Package main provides the dbt-governance CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/dbt-governance/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
