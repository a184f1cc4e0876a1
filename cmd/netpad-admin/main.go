package main

import (
	"os"

	"github.com/netpad/api/cmd/netpad-admin/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
