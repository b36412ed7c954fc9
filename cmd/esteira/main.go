package main

import (
	"context"
	"fmt"
	"os"

	"github.com/managershow/esteira/cmd"
	"github.com/managershow/esteira/internal/cli"
)

func main() {
	err := cmd.Execute(context.Background())
	if err != nil && !cli.IsReported(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.ExitCodeFor(err))
}
