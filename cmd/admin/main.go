// Command admin is the operator tool for a running host daemon: inspect
// world-port bindings and deployment history, and decode the on-disk deploy
// logs. Live queries go through the daemon's loopback admin endpoints;
// offline queries read the data directory directly.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "ports":
			portsCmd(os.Args[2:])
			return
		case "deployments":
			deploymentsCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "deploy-log":
			deployLogCmd(os.Args[2:])
			return
		case "-h", "--help", "help":
		}
	}
	usage()
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: admin <command> [flags]

commands:
  ports        list world-port bindings from a running daemon
  deployments  list recent deployments from a running daemon
  db           query the bindings database directly (daemon may be stopped)
  deploy-log   decode zstd deploy logs from the data directory`)
	os.Exit(2)
}
