// Command carhack decodes Nissan 370Z CAN traffic into named signals.
//
// Usage:
//
//	carhack decode [--format text|json|cbor|msgpack] [capture files...]
//	carhack listen --port /dev/ttyUSB0
//	carhack compare a.log b.log ...
//	carhack ids
//	carhack inspect --format cbor < signals.cbor
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version and commit are set via ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "carhack",
		Usage:          "Decode Nissan 370Z CAN frames into named signals",
		Version:        fmt.Sprintf("%s (commit: %s)", version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			decodeCommand(),
			listenCommand(),
			compareCommand(),
			idsCommand(),
			inspectCommand(),
		},
	}
}

// exitErrHandler preserves exit codes from cli.Exit.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
