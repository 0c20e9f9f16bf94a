package main

import (
	"fmt"
	"os"

	"github.com/veilproxy/veilproxy/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start veilproxy: %v\n", err)
		os.Exit(1)
	}

	if err := a.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "veilproxy server failed: %v\n", err)
		os.Exit(1)
	}
}
