package main

import (
	"fmt"
	"os"

	"github.com/blackwell-systems/hangwatch/internal/app"
	"github.com/blackwell-systems/hangwatch/internal/appinfo"
)

func main() {
	// The launch context is only visible this early.
	appinfo.Default().RecordMainStarted()

	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
