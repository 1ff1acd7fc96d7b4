package argmatch

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"wasm-driver/internal/queue"
)

// scriptedInv is an Invocation whose passes are handed in by the test.
type scriptedInv struct {
	passes    []Pass
	checkErrs map[int]error
	output    string
}

func (s *scriptedInv) Name() string                         { return "scripted" }
func (s *scriptedInv) EnqueueCommands(q *queue.Queue) error { return nil }
func (s *scriptedInv) AddToolInput(path string) error       { return nil }
func (s *scriptedInv) Output() string                       { return s.output }
func (s *scriptedInv) OverrideOutput(path string)           { s.output = path }

func (s *scriptedInv) CheckState(iteration int) error {
	return s.checkErrs[iteration]
}

func (s *scriptedInv) Args(iteration int) Pass {
	if iteration < len(s.passes) {
		return s.passes[iteration]
	}
	return nil
}

func TestProcess_PassesSeeAShrinkingTokenSet(t *testing.T) {
	var output string
	var static bool
	var inputs []string

	inv := &scriptedInv{passes: []Pass{
		{
			MustArg(`-o(.+)`, `-o`, func(single bool, caps []string) error {
				output = caps[1]
				return nil
			}),
			MustArg(`-static`, "", func(single bool, caps []string) error {
				static = true
				return nil
			}),
		},
		{
			MustArg("", "", func(single bool, caps []string) error {
				inputs = append(inputs, caps[1])
				return nil
			}),
		},
	}}

	err := Process(inv, []string{"a.o", "-o", "prog", "b.o", "-static", "c.o"})
	if err != nil {
		t.Fatalf("Process() = %v", err)
	}
	if output != "prog" {
		t.Errorf("output = %q, want %q", output, "prog")
	}
	if !static {
		t.Error("-static not consumed in first pass")
	}
	// second pass sees only what the first left, original order intact
	if want := []string{"a.o", "b.o", "c.o"}; !reflect.DeepEqual(inputs, want) {
		t.Errorf("inputs = %v, want %v", inputs, want)
	}
}

func TestProcess_SingleFormWinsOverSplitForm(t *testing.T) {
	var got []string
	arg := MustArg(`-o(.+)`, `-o`, func(single bool, caps []string) error {
		got = append(got, caps[1])
		return nil
	})
	inv := &scriptedInv{passes: []Pass{{arg}}}

	if err := Process(inv, []string{"-oglued", "-o", "separate"}); err != nil {
		t.Fatalf("Process() = %v", err)
	}
	if want := []string{"glued", "separate"}; !reflect.DeepEqual(got, want) {
		t.Errorf("values = %v, want %v", got, want)
	}
}

func TestProcess_SplitFormAtEndOfInput(t *testing.T) {
	arg := MustArg("", `-o`, func(single bool, caps []string) error { return nil })
	inv := &scriptedInv{passes: []Pass{{arg}}}

	err := Process(inv, []string{"-o"})
	if err == nil {
		t.Fatal("Process() = nil, want error")
	}
	want := "error on argument `-o`: `expects another argument`"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestProcess_AggregatesActionErrorsPerPass(t *testing.T) {
	catchAll := MustArg("", "", func(single bool, caps []string) error {
		return errors.New("unsupported flag")
	})
	inv := &scriptedInv{passes: []Pass{{catchAll}}}

	err := Process(inv, []string{"-bad1", "-bad2"})
	var agg *AggregateError
	if !errors.As(err, &agg) {
		t.Fatalf("Process() = %v, want *AggregateError", err)
	}
	if len(agg.Errors) != 2 {
		t.Fatalf("len(Errors) = %d, want 2", len(agg.Errors))
	}
	lines := strings.Split(err.Error(), "\n")
	if lines[0] != "error on argument `-bad1`: `unsupported flag`" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "error on argument `-bad2`: `unsupported flag`" {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestProcess_CheckStateFailsFast(t *testing.T) {
	stateErr := errors.New("native output requires a target")
	ran := false
	inv := &scriptedInv{
		passes: []Pass{
			{MustArg(`-static`, "", func(single bool, caps []string) error { return nil })},
			{MustArg("", "", func(single bool, caps []string) error {
				ran = true
				return nil
			})},
		},
		checkErrs: map[int]error{0: stateErr},
	}

	err := Process(inv, []string{"-static", "a.o"})
	if !errors.Is(err, stateErr) {
		t.Fatalf("Process() = %v, want %v", err, stateErr)
	}
	if ran {
		t.Error("later pass ran after CheckState failure")
	}
}

func TestProcess_LeftoverTokensAreAnError(t *testing.T) {
	inv := &scriptedInv{passes: []Pass{
		{MustArg(`-v`, "", func(single bool, caps []string) error { return nil })},
	}}

	err := Process(inv, []string{"-v", "stray"})
	if err == nil {
		t.Fatal("Process() = nil, want error")
	}
	want := "error on argument `stray`: `unexpected argument`"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestMustArg_AnchorsPatterns(t *testing.T) {
	arg := MustArg(`-static`, "", func(single bool, caps []string) error { return nil })
	if arg.Single.MatchString("-static-libgcc") {
		t.Error("unanchored match on longer token")
	}
	if !arg.Single.MatchString("-static") {
		t.Error("exact token did not match")
	}
}

func TestSuggest_RanksCandidates(t *testing.T) {
	known := []string{"--entry", "--export", "--undefined", "-static"}
	got := Suggest("--entr", known)
	if len(got) == 0 {
		t.Fatal("no suggestions for a near miss")
	}
	if got[0] != "--entry" {
		t.Errorf("best suggestion = %q, want %q", got[0], "--entry")
	}
}
