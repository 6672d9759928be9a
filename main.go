package main

import (
	"context"
	"os"

	"github.com/meera-os/meera/pkg/cli"
)

func main() {
	ctx := context.Background()
	if err := cli.Run(ctx, os.Args); err != nil {
		os.Exit(err.Code)
	}
}
