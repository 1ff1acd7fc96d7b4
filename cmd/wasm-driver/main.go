// wasm-driver is the multi-tool toolchain driver. The first argument
// names the tool to run; everything after is that tool's command line.
package main

import (
	"errors"
	"fmt"
	"os"

	"wasm-driver/internal/argmatch"
	"wasm-driver/internal/config"
	"wasm-driver/internal/driver/ld"
	"wasm-driver/internal/filetype"
	"wasm-driver/internal/logger"
	"wasm-driver/internal/queue"
)

const bugReportLine = "Woa! An unexpected error occurred inside the driver. Please file a bug report with the full command line attached."

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, bugReportLine)
			code = 127
		}
	}()

	logger.Configure()
	queue.HandleInterrupts()

	// driver-level flags come off before the tool sees the line
	var dryRun, verbose bool
	rest := make([]string, 0, len(args))
	for _, a := range args {
		switch a {
		case "--dry-run":
			dryRun = true
		case "--driver-verbose":
			verbose = true
		default:
			rest = append(rest, a)
		}
	}

	if len(rest) == 0 {
		usage()
		return 1
	}
	tool := rest[0]
	rest = rest[1:]

	switch tool {
	case "help", "-h", "--help":
		usage()
		return 0
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	var inv argmatch.Invocation
	switch tool {
	case "ld":
		inv = ld.New(&cfg, filetype.NewSniffer())
	default:
		fmt.Fprintf(os.Stderr, "unknown tool `%s`\n", tool)
		usage()
		return 1
	}

	if err := argmatch.Process(inv, rest); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	q := queue.New(inv.Output())
	q.SetVerbose(verbose)
	q.SetDryRun(dryRun)
	if err := inv.EnqueueCommands(q); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if err := q.RunAll(); err != nil {
		var perr *queue.ProcessError
		switch {
		case errors.As(err, &perr):
			fmt.Fprintln(os.Stderr, err)
			return perr.Code
		case errors.Is(err, queue.ErrInterrupted):
			return 1
		default:
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	}
	return 0
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: wasm-driver [--dry-run] [--driver-verbose] <tool> [args...]

tools:
  ld    link bitcode and native objects into a wasm binary

driver flags:
  --dry-run         print the commands that would run without spawning them
  --driver-verbose  print each command as it runs`)
}
