// Package main is the entrypoint for the TravelQuest reward settlement service.
package main

import "github.com/aimd54/travelquest-rewards/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
