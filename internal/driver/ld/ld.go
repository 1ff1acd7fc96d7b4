// Package ld is the bitcode linker driver. It parses a GNU ld style
// command line, resolves libraries and linker scripts into concrete
// inputs, and queues the underlying wasm-ld invocation.
package ld

import (
	"errors"
	"fmt"
	"strings"

	"wasm-driver/internal/argmatch"
	"wasm-driver/internal/config"
	"wasm-driver/internal/filetype"
	"wasm-driver/internal/ldtools"
	"wasm-driver/internal/queue"
)

// Invocation accumulates one ld command line. Inputs keep their command
// line order after expansion; the counts drive the state checks.
type Invocation struct {
	cfg *config.Config
	sn  *filetype.Sniffer

	output      string
	entry       string
	exports     []string
	undefined   []string
	searchPaths []string
	staticOnly  bool
	shared      bool
	relocatable bool
	target      string
	optLevel    string
	strip       bool
	debug       bool
	ldFlags     []string

	inputs       []ldtools.Input
	bitcodeCount int
	nativeCount  int
}

func New(cfg *config.Config, sn *filetype.Sniffer) *Invocation {
	return &Invocation{
		cfg:    cfg,
		sn:     sn,
		output: "a.out",
	}
}

func (i *Invocation) Name() string { return "ld" }

func (i *Invocation) Output() string { return i.output }

func (i *Invocation) OverrideOutput(path string) { i.output = path }

// AddToolInput feeds an upstream pipeline output into this link.
func (i *Invocation) AddToolInput(path string) error {
	return i.addInput(ldtools.File{Path: path})
}

// libraryPaths puts command line -L directories ahead of the configured
// sysroot search paths.
func (i *Invocation) libraryPaths() []string {
	return append(append([]string(nil), i.searchPaths...), i.cfg.LibraryPaths()...)
}

func (i *Invocation) addInput(in ldtools.Input) error {
	expanded, err := ldtools.ExpandInput(i.sn, in, i.libraryPaths(), i.staticOnly)
	if err != nil {
		return err
	}
	for _, e := range expanded {
		switch v := e.(type) {
		case ldtools.Library:
			if v.Allowed == ldtools.AllowedBitcode {
				i.bitcodeCount++
			} else {
				i.nativeCount++
			}
		case ldtools.File:
			if i.sn.IsNative(v.Path) {
				i.nativeCount++
			} else {
				i.bitcodeCount++
			}
		}
		i.inputs = append(i.inputs, e)
	}
	return nil
}

func (i *Invocation) addLibrary(ref string) error {
	lib := ldtools.Library{Name: ref}
	if strings.HasPrefix(ref, ":") {
		lib = ldtools.Library{Absolute: true, Name: ref[1:]}
	}
	return i.addInput(lib)
}

// positionalFlags are consumed in the input pass so they keep their place
// relative to the inputs around them.
var positionalFlags = map[string]bool{
	"--start-group":      true,
	"--end-group":        true,
	"--as-needed":        true,
	"--no-as-needed":     true,
	"--whole-archive":    true,
	"--no-whole-archive": true,
}

// knownFlags feeds the suggestion machinery for unrecognized tokens.
var knownFlags = []string{
	"-o", "--entry", "--export", "--undefined", "--target", "-static",
	"-shared", "--relocatable", "--library-path", "--strip-all",
	"--start-group", "--end-group", "--as-needed", "--no-as-needed",
	"--whole-archive", "--no-whole-archive",
}

// Args returns the pass for one parsing iteration: link mode and search
// path flags first, value flags second, then the positional pass that
// interleaves libraries, grouping flags and input files.
func (i *Invocation) Args(iteration int) argmatch.Pass {
	switch iteration {
	case 0:
		return argmatch.Pass{
			argmatch.MustArg(`--target=(.+)`, `--target`, func(single bool, caps []string) error {
				i.target = caps[1]
				return nil
			}),
			argmatch.MustArg(`-L(.+)`, `-L|--library-path`, func(single bool, caps []string) error {
				i.searchPaths = append(i.searchPaths, caps[1])
				return nil
			}),
			argmatch.MustArg(`-static`, ``, func(single bool, caps []string) error {
				i.staticOnly = true
				return nil
			}),
			argmatch.MustArg(`-shared`, ``, func(single bool, caps []string) error {
				i.shared = true
				return nil
			}),
			argmatch.MustArg(`-r|--relocatable`, ``, func(single bool, caps []string) error {
				i.relocatable = true
				return nil
			}),
		}
	case 1:
		return argmatch.Pass{
			argmatch.MustArg(`-o(.+)`, `-o`, func(single bool, caps []string) error {
				i.output = caps[1]
				return nil
			}),
			argmatch.MustArg(`--entry=(.+)`, `--entry|-e`, func(single bool, caps []string) error {
				i.entry = caps[1]
				return nil
			}),
			argmatch.MustArg(`--export=(.+)`, `--export`, func(single bool, caps []string) error {
				i.exports = append(i.exports, caps[1])
				return nil
			}),
			argmatch.MustArg(`--undefined=(.+)`, `--undefined|-u`, func(single bool, caps []string) error {
				i.undefined = append(i.undefined, caps[1])
				return nil
			}),
			argmatch.MustArg(`-O([0-4sz])`, ``, func(single bool, caps []string) error {
				i.optLevel = caps[1]
				return nil
			}),
			argmatch.MustArg(`-g`, ``, func(single bool, caps []string) error {
				i.debug = true
				return nil
			}),
			argmatch.MustArg(`-s|--strip-all`, ``, func(single bool, caps []string) error {
				i.strip = true
				return nil
			}),
			argmatch.MustArg(`-Wl,(.+)`, ``, func(single bool, caps []string) error {
				i.ldFlags = append(i.ldFlags, strings.Split(caps[1], ",")...)
				return nil
			}),
			argmatch.MustArg(``, `-Xlinker`, func(single bool, caps []string) error {
				i.ldFlags = append(i.ldFlags, caps[1])
				return nil
			}),
		}
	case 2:
		return argmatch.Pass{
			argmatch.MustArg(`-l(.+)`, `-l`, func(single bool, caps []string) error {
				return i.addLibrary(caps[1])
			}),
			argmatch.MustArg(``, ``, func(single bool, caps []string) error {
				tok := caps[1]
				if positionalFlags[tok] {
					return i.addInput(ldtools.Flag{Text: tok})
				}
				if strings.HasPrefix(tok, "-") {
					if hints := argmatch.Suggest(tok, knownFlags); len(hints) > 0 {
						return fmt.Errorf("unsupported flag, did you mean %s", strings.Join(hints, " or "))
					}
					return errors.New("unsupported flag")
				}
				return i.addInput(ldtools.File{Path: tok})
			}),
		}
	}
	return nil
}

func (i *Invocation) CheckState(iteration int) error {
	switch iteration {
	case 0:
		if i.shared && i.relocatable {
			return errors.New("-shared and -r are incompatible")
		}
	case 2:
		if len(i.inputs) == 0 {
			return errors.New("no input files")
		}
		if i.nativeCount > 0 && i.target == "" {
			return errors.New("native objects require an explicit --target")
		}
	}
	return nil
}

// serialize turns an expanded input back into one linker argv token.
// Libraries are already resolved, so their Name is a concrete path.
func serialize(in ldtools.Input) string {
	switch v := in.(type) {
	case ldtools.Library:
		return v.Name
	case ldtools.File:
		return v.Path
	case ldtools.Flag:
		return v.Text
	}
	return in.String()
}

// EnqueueCommands plans the wasm-ld run. The queue supplies the output
// flag pair and threads any upstream intermediate outputs into argv.
func (i *Invocation) EnqueueCommands(q *queue.Queue) error {
	var argv []string
	if i.target != "" {
		argv = append(argv, "--target="+i.target)
	}
	if i.relocatable {
		argv = append(argv, "--relocatable")
	}
	if i.shared {
		argv = append(argv, "--shared")
	}
	if i.entry != "" {
		argv = append(argv, "--entry", i.entry)
	}
	for _, e := range i.exports {
		argv = append(argv, "--export="+e)
	}
	for _, u := range i.undefined {
		argv = append(argv, "--undefined="+u)
	}
	if i.optLevel != "" {
		argv = append(argv, "-O"+i.optLevel)
	}
	if i.strip && !i.debug {
		argv = append(argv, "--strip-all")
	}
	argv = append(argv, i.ldFlags...)
	for _, in := range i.inputs {
		argv = append(argv, serialize(in))
	}
	q.EnqueueExternal(i.cfg.ToolPath("wasm-ld"), argv, "-o", false, nil)
	return nil
}
