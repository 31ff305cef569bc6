package main

import (
	"os"

	"github.com/smallbiznis/meterreadings/cmd/meterreadings/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
