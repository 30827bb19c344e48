package main

import (
	"context"
	"os"

	"expensetracker/internal/app"
	"expensetracker/internal/cli"
	"expensetracker/internal/render"
)

func main() {
	ctx, stop := cli.SignalContext(context.Background())
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		render.New(os.Stderr, "").Error(app.UserMessage(err))
		os.Exit(1)
	}
}
