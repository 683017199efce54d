// Command danmaku runs the comment wall event server, attaches walls to
// it and replays wall scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/danmaku/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "danmaku:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
