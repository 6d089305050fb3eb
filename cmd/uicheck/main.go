// Command uicheck runs declarative UI scenarios against a browser.
//
// Usage:
//
//	uicheck run [--driver playwright|fake] [--format text|json] <file-or-dir>...
//	uicheck validate <file-or-dir>...
//	uicheck list <file-or-dir>...
//	uicheck install [--browser chromium]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kuitang/uicheck/internal/cli"
	"github.com/kuitang/uicheck/internal/obs"
)

func main() {
	obs.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "uicheck:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
