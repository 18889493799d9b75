// Command agora-server runs the agora autotuning orchestration server:
// it dials the broker and serves welcome/info/observation/kia traffic,
// recovering an application's persisted state when the first message
// for that application arrives. It runs until SIGINT or SIGTERM; a
// shutdown system message stops the worker pool but does not end the
// process.
package main

import (
	"fmt"
	"os"

	"github.com/teranos/agora/cmd/agora-server/commands"
)

func main() {
	if err := commands.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
