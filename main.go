package main

import (
	"beamdrop/cmd"
	"beamdrop/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
