package main

import (
	"os"

	"github.com/neekaru/whatsappgo-gateway/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
