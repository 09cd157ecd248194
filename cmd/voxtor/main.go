package main

import (
	"errors"
	"os"

	"github.com/voxtor/voxtor/cmd/voxtor/commands"
	"github.com/voxtor/voxtor/cmd/voxtor/internal/format"
)

func main() {
	root := commands.NewCommand()
	if err := root.Execute(); err != nil {
		var exitErr *format.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
