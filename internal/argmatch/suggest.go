package argmatch

import (
	"github.com/sahilm/fuzzy"
)

// Suggest ranks known flag names against an unrecognized token, for use
// in "unsupported flag" diagnostics. At most three candidates come back,
// best first.
func Suggest(token string, known []string) []string {
	matches := fuzzy.Find(token, known)
	if len(matches) > 3 {
		matches = matches[:3]
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
	}
	return out
}
