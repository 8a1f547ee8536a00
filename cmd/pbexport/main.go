// pbexport converts historian channels into yearly .pb files.
//
// The export command reads PV names from stdin, one per line, and writes
// "Done" to stdout after each PV until it reads "<>exit". exportall exports
// every channel of the index with a worker pool. inspect prints the header
// and last record of existing files; status lists the outcome of the most
// recent export of every PV.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes one command line. It is separated from main for
// testability.
//
// Parameters:
//   - ctx: Context cancelled on SIGINT/SIGTERM
//   - args: Command-line arguments without the program name
//   - stdin: Control input of the export command
//   - stdout: Completion lines and command output
//
// Returns:
//   - error: nil on success, or the error that stopped the command
func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	root := newRootCmd(&app{stdin: stdin, stdout: stdout})
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	return root.ExecuteContext(ctx)
}
