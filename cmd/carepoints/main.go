// Package main is the single-binary entrypoint for carepoints.
package main

import (
	_ "time/tzdata" // IANA zones for per-event time zones on hosts without zoneinfo

	"github.com/rural-health/carepoints/internal/cli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
