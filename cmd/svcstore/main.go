package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/svcstore/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "svcstore: %v\n", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
