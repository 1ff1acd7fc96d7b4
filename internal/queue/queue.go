// Package queue runs the command pipeline a driver builds up: external
// tool invocations, nested driver invocations and in-process functions,
// executed in order with intermediate outputs threaded from one step to
// the next through a per-run temp directory.
package queue

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"wasm-driver/internal/logger"
)

// saveTempsEnv keeps the per-run temp directory around for debugging.
const saveTempsEnv = "WASM_TOOLCHAIN_SAVE_TMPS"

// Tool is a driver invocation that can be queued as a step of another
// driver's pipeline. EnqueueCommands plans the tool's own pipeline into
// the queue it is handed; AddToolInput and OverrideOutput let the outer
// pipeline rewire the tool's inputs and output before that happens.
type Tool interface {
	Name() string
	EnqueueCommands(q *Queue) error
	AddToolInput(path string) error
	Output() string
	OverrideOutput(path string)
}

// ErrInterrupted aborts the pipeline after the user sent an interrupt.
var ErrInterrupted = errors.New("interrupted")

// ProcessError reports an external command that exited nonzero. The
// driver's own exit code mirrors the child's.
type ProcessError struct {
	Name string
	Code int
	Err  error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("command `%s` exited with code %d", e.Name, e.Code)
}

func (e *ProcessError) Unwrap() error { return e.Err }

type commandKind uint8

const (
	cmdExternal commandKind = iota
	cmdNested
	cmdFunction
	cmdFunctionState
)

// Command is one queued pipeline step.
type Command struct {
	kind commandKind
	name string

	// external
	argv       []string
	outputFlag string
	cantFail   bool
	// ownedTempDirs are scratch directories this command owns; they are
	// removed when its run returns.
	ownedTempDirs []string

	// nested
	tool Tool

	// in-process
	fn      func() error
	fnState func(*RunState) error

	// IntermediateName names this step's output file inside the temp
	// directory; empty means a numbered default.
	intermediateName string
	// prevOutputs appends the previous step's outputs to argv.
	prevOutputs bool
	// outputOverride appends outputFlag plus the computed output path.
	outputOverride bool
	// copyOutputTo duplicates the step's output after it succeeds.
	copyOutputTo string
}

// IntermediateName names the step's output file inside the temp directory.
func (c *Command) IntermediateName(name string) *Command {
	c.intermediateName = name
	return c
}

// PrevOutputs controls whether the previous step's outputs are appended
// to this step's argv.
func (c *Command) PrevOutputs(v bool) *Command {
	c.prevOutputs = v
	return c
}

// OutputOverride controls whether the computed output path is appended.
func (c *Command) OutputOverride(v bool) *Command {
	c.outputOverride = v
	return c
}

// CopyOutputTo duplicates the step's output to path once it succeeds.
func (c *Command) CopyOutputTo(path string) *Command {
	c.copyOutputTo = path
	return c
}

// RunState is what a step sees about the pipeline around it.
type RunState struct {
	Index       int
	FinalOutput string
	PrevOutputs []string
	TempDir     string
	IsLast      bool
	DryRun      bool
}

// OutputPath decides where this step writes: the pipeline's final output
// when it is the last step and the caller asked for one, otherwise a file
// in the temp directory.
func (rs *RunState) OutputPath(intermediateName string) string {
	if rs.IsLast && rs.FinalOutput != "" {
		return rs.FinalOutput
	}
	name := intermediateName
	if name == "" {
		name = fmt.Sprintf("step%d", rs.Index)
	}
	return filepath.Join(rs.TempDir, name)
}

// Queue accumulates commands and runs them in order.
type Queue struct {
	finalOutput string
	cmds        []*Command
	verbose     bool
	dryRun      bool
	log         *logger.LogEntry
}

func New(finalOutput string) *Queue {
	return &Queue{
		finalOutput: finalOutput,
		log:         logger.Named("queue"),
	}
}

func (q *Queue) SetVerbose(v bool) { q.verbose = v }

func (q *Queue) SetDryRun(v bool) { q.dryRun = v }

// EnqueueExternal queues an external tool run. ownedTempDirs names
// scratch directories tied to this one command.
func (q *Queue) EnqueueExternal(name string, argv []string, outputFlag string, cantFail bool, ownedTempDirs []string) *Command {
	c := &Command{
		kind:           cmdExternal,
		name:           name,
		argv:           argv,
		outputFlag:     outputFlag,
		cantFail:       cantFail,
		ownedTempDirs:  ownedTempDirs,
		prevOutputs:    true,
		outputOverride: true,
	}
	q.cmds = append(q.cmds, c)
	return c
}

// EnqueueNested queues another driver invocation as a pipeline step. By
// default the tool's output is rewired to the pipeline's computed path
// and prior outputs are fed to it; OutputOverride(false) lets the tool
// keep its self-reported output instead.
func (q *Queue) EnqueueNested(tool Tool) *Command {
	c := &Command{
		kind:           cmdNested,
		name:           tool.Name(),
		tool:           tool,
		prevOutputs:    true,
		outputOverride: true,
	}
	q.cmds = append(q.cmds, c)
	return c
}

// EnqueueFunction queues an in-process step with no output of its own.
func (q *Queue) EnqueueFunction(name string, fn func() error) *Command {
	c := &Command{kind: cmdFunction, name: name, fn: fn}
	q.cmds = append(q.cmds, c)
	return c
}

// EnqueueFunctionState is EnqueueFunction for steps that need to see the
// pipeline state.
func (q *Queue) EnqueueFunctionState(name string, fn func(*RunState) error) *Command {
	c := &Command{kind: cmdFunctionState, name: name, fnState: fn}
	q.cmds = append(q.cmds, c)
	return c
}

// RunAll executes every queued command in order. Intermediate outputs
// live in a fresh temp directory, removed afterwards unless
// WASM_TOOLCHAIN_SAVE_TMPS is set in the environment.
func (q *Queue) RunAll() error {
	tempDir := filepath.Join(os.TempDir(), "wasm-driver-"+uuid.NewString())
	if !q.dryRun {
		if err := os.MkdirAll(tempDir, 0o700); err != nil {
			return fmt.Errorf("creating temp directory: %w", err)
		}
	}
	defer func() {
		if os.Getenv(saveTempsEnv) != "" {
			q.log.Infof("keeping temp directory %s", tempDir)
			return
		}
		os.RemoveAll(tempDir)
	}()

	var prev []string
	for i, c := range q.cmds {
		if Interrupted() {
			return ErrInterrupted
		}
		rs := &RunState{
			Index:       i,
			FinalOutput: q.finalOutput,
			PrevOutputs: prev,
			TempDir:     tempDir,
			IsLast:      i == len(q.cmds)-1,
			DryRun:      q.dryRun,
		}
		out, err := q.runOne(c, rs)
		for _, d := range c.ownedTempDirs {
			os.RemoveAll(d)
		}
		if err != nil {
			return err
		}
		if c.copyOutputTo != "" && out != "" && !q.dryRun {
			if cerr := copyFile(out, c.copyOutputTo); cerr != nil {
				return cerr
			}
		}
		// outputs accumulate until a consumer drains them
		if c.drainsPrev() {
			prev = nil
		}
		if out != "" {
			prev = append(prev, out)
		}
	}
	return nil
}

// drainsPrev reports whether the command consumed the accumulated prior
// outputs: externals that append them to argv and nested tools that take
// them as inputs.
func (c *Command) drainsPrev() bool {
	switch c.kind {
	case cmdExternal, cmdNested:
		return c.prevOutputs
	}
	return false
}

func (q *Queue) runOne(c *Command, rs *RunState) (string, error) {
	switch c.kind {
	case cmdExternal:
		return q.runExternal(c, rs)
	case cmdNested:
		return q.runNested(c, rs)
	case cmdFunction:
		return "", c.fn()
	case cmdFunctionState:
		return "", c.fnState(rs)
	}
	return "", fmt.Errorf("internal error: unknown command kind %d", c.kind)
}

func (q *Queue) runExternal(c *Command, rs *RunState) (string, error) {
	argv := append([]string(nil), c.argv...)
	if c.prevOutputs {
		argv = append(argv, rs.PrevOutputs...)
	}

	var out string
	if c.outputOverride {
		if c.outputFlag == "" {
			if rs.IsLast && rs.FinalOutput != "" {
				return "", errors.New("internal error: last command in queue has no output parameter")
			}
		} else {
			out = rs.OutputPath(c.intermediateName)
			argv = append(argv, c.outputFlag, out)
		}
	}

	if rs.DryRun {
		fmt.Fprintln(os.Stderr, c.name+" "+strings.Join(argv, " "))
		return out, nil
	}
	if q.verbose {
		q.log.Infof("running %s %s", c.name, strings.Join(argv, " "))
	}

	cmd := exec.Command(c.name, argv...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	if err == nil {
		return out, nil
	}

	code := 1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	if c.cantFail {
		q.log.Warnf("%s exited with code %d, continuing", c.name, code)
		return out, nil
	}
	return "", &ProcessError{Name: c.name, Code: code, Err: err}
}

func (q *Queue) runNested(c *Command, rs *RunState) (string, error) {
	if c.prevOutputs {
		for _, p := range rs.PrevOutputs {
			if err := c.tool.AddToolInput(p); err != nil {
				return "", err
			}
		}
	}
	if c.outputOverride {
		name := c.intermediateName
		if name == "" {
			name = c.tool.Name()
		}
		c.tool.OverrideOutput(rs.OutputPath(name))
	}

	sub := New(c.tool.Output())
	sub.verbose = q.verbose
	sub.dryRun = q.dryRun
	if err := c.tool.EnqueueCommands(sub); err != nil {
		return "", err
	}
	if err := sub.RunAll(); err != nil {
		return "", err
	}
	return c.tool.Output(), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
