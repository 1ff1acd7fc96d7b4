// Package argmatch is the pattern-driven argument dispatcher shared by
// the drivers. A driver describes each iteration of its command line as
// an ordered pass of patterns with actions; Process walks the token list
// repeatedly, one pass per iteration, consuming what matched and
// collecting what failed.
package argmatch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"wasm-driver/internal/queue"
)

// Arg pairs token patterns with the action to run on a match. Single
// matches a whole token; Split matches a flag whose value is the next
// token. An Arg with neither pattern accepts any token. First matching
// Arg in the pass wins, and within one Arg the single form is tried
// before the split form.
type Arg struct {
	Single *regexp.Regexp
	Split  *regexp.Regexp
	// Action receives the capture groups of the matched pattern. For the
	// split form and for pattern-less acceptors the captures are the
	// consumed value twice, so caps[1] is always the payload. A nil
	// Action consumes the token without touching any state.
	Action func(single bool, caps []string) error
}

// MustArg compiles an Arg from pattern strings, anchoring both ends.
// An empty string leaves that form off. Bad patterns panic; every
// pattern in a driver is a literal, so a failure here is a programming
// error caught the first time the pass is built.
func MustArg(single, split string, action func(single bool, caps []string) error) *Arg {
	a := &Arg{Action: action}
	if single != "" {
		a.Single = regexp.MustCompile("^(?:" + single + ")$")
	}
	if split != "" {
		a.Split = regexp.MustCompile("^(?:" + split + ")$")
	}
	return a
}

// Pass is one iteration's patterns, tried in order for each token.
type Pass []*Arg

// Invocation is a parsed-in-progress driver invocation. Args returns the
// pass for an iteration, or nil when there are no more iterations.
// CheckState validates accumulated state after each clean pass.
type Invocation interface {
	queue.Tool
	CheckState(iteration int) error
	Args(iteration int) Pass
}

// TokenError ties an action failure to the token that triggered it.
type TokenError struct {
	Token string
	Err   error
}

func (e TokenError) Error() string {
	return fmt.Sprintf("error on argument `%s`: `%s`", e.Token, e.Err)
}

func (e TokenError) Unwrap() error { return e.Err }

// AggregateError collects every failure of one pass, one line per token.
type AggregateError struct {
	Errors []TokenError
}

func (e *AggregateError) Error() string {
	lines := make([]string, len(e.Errors))
	for i, te := range e.Errors {
		lines[i] = te.Error()
	}
	return strings.Join(lines, "\n")
}

var errExpectsArgument = errors.New("expects another argument")

type slot struct {
	tok      string
	consumed bool
}

// Process dispatches tokens against the invocation's passes. Tokens keep
// their relative order across iterations; a token consumed in one pass is
// invisible to later ones. Action errors within a pass are aggregated and
// returned together; a failed CheckState returns immediately. Tokens no
// pass claimed are themselves an error.
func Process(inv Invocation, tokens []string) error {
	work := make([]*slot, len(tokens))
	for i, t := range tokens {
		work[i] = &slot{tok: t}
	}

	for iteration := 0; ; iteration++ {
		pass := inv.Args(iteration)
		if pass == nil {
			break
		}

		var agg AggregateError
		for i := 0; i < len(work); i++ {
			s := work[i]
			arg, caps, split := match(pass, s.tok)
			if arg == nil {
				continue
			}
			s.consumed = true
			if split {
				if i+1 >= len(work) {
					agg.Errors = append(agg.Errors, TokenError{s.tok, errExpectsArgument})
					continue
				}
				val := work[i+1].tok
				caps = []string{val, val}
				work[i+1].consumed = true
				i++
			}
			if arg.Action == nil {
				continue
			}
			if err := arg.Action(!split, caps); err != nil {
				agg.Errors = append(agg.Errors, TokenError{s.tok, err})
			}
		}
		if len(agg.Errors) > 0 {
			return &agg
		}
		if err := inv.CheckState(iteration); err != nil {
			return err
		}

		kept := work[:0]
		for _, s := range work {
			if !s.consumed {
				kept = append(kept, s)
			}
		}
		work = kept
	}

	if len(work) > 0 {
		var agg AggregateError
		for _, s := range work {
			agg.Errors = append(agg.Errors, TokenError{s.tok, errors.New("unexpected argument")})
		}
		return &agg
	}
	return nil
}

// match finds the first Arg in the pass claiming tok. split reports that
// the split form matched and the following token must be consumed too.
func match(pass Pass, tok string) (arg *Arg, caps []string, split bool) {
	for _, a := range pass {
		if a.Single != nil {
			if caps := a.Single.FindStringSubmatch(tok); caps != nil {
				return a, caps, false
			}
		}
		if a.Split != nil && a.Split.MatchString(tok) {
			return a, nil, true
		}
		if a.Single == nil && a.Split == nil {
			return a, []string{tok, tok}, false
		}
	}
	return nil, nil, false
}
