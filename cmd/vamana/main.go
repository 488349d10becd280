// Command vamana builds, queries and ships Vamana graph indexes.
//
// Usage:
//
//	vamana [-c config.yaml] <command> [flags]
//
// Commands:
//
//	prebuild  - reserve the graph region under dir
//	build     - build the graph over data.path (.fvecs)
//	search    - query a built graph
//	snapshot  - push, pull and list region snapshots in the blob store
//
// Configuration is read from vamana.yaml unless -c says otherwise. A
// missing file means defaults.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
