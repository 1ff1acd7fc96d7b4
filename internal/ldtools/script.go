package ldtools

import (
	"path/filepath"
	"strings"
	"unicode"

	"wasm-driver/internal/filetype"
)

type frame uint8

const (
	frameInput frame = iota
	frameGroup
	frameOutputFormat
	frameExtern
	frameAsNeeded
)

// tokenize splits on whitespace; '(' and ')' are always their own token,
// even glued to neighboring text.
func tokenize(src string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range src {
		switch {
		case unicode.IsSpace(r):
			flush()
		case r == '(' || r == ')':
			flush()
			toks = append(toks, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

// ParseLinkerScript parses the GNU ld-script subset the drivers care about:
// INPUT, GROUP, OUTPUT_FORMAT, EXTERN and nested AS_NEEDED. File references
// inside the script resolve relative to dir. Any structural violation
// returns nil so the caller can fall back to treating the candidate as an
// opaque file.
//
// Comments are only recognized when /* and */ fall on token boundaries; a
// marker glued mid-token misparses, same as the drivers always have.
func ParseLinkerScript(src, dir string) []Input {
	toks := tokenize(src)

	var ret []Input
	var stack []frame
	comment := false

	// expectOpen consumes the '(' that must follow a directive.
	i := 0
	expectOpen := func() bool {
		i++
		return i < len(toks) && toks[i] == "("
	}

	for ; i < len(toks); i++ {
		tok := toks[i]

		if strings.HasPrefix(tok, "/*") {
			comment = true
		}
		if comment {
			if strings.HasSuffix(tok, "*/") {
				comment = false
			}
			continue
		}

		if len(stack) == 0 {
			switch tok {
			case "INPUT":
				if !expectOpen() {
					return nil
				}
				stack = append(stack, frameInput)
			case "GROUP":
				if !expectOpen() {
					return nil
				}
				ret = append(ret, Flag{"--start-group"})
				stack = append(stack, frameGroup)
			case "OUTPUT_FORMAT":
				if !expectOpen() {
					return nil
				}
				stack = append(stack, frameOutputFormat)
			case "EXTERN":
				if !expectOpen() {
					return nil
				}
				stack = append(stack, frameExtern)
			case ";":
			default:
				return nil
			}
			continue
		}

		top := stack[len(stack)-1]
		switch {
		case tok == ")":
			stack = stack[:len(stack)-1]
			switch top {
			case frameGroup:
				ret = append(ret, Flag{"--end-group"})
			case frameAsNeeded:
				ret = append(ret, Flag{"--no-as-needed"})
			}
		case tok == "AS_NEEDED":
			if !expectOpen() {
				return nil
			}
			ret = append(ret, Flag{"--as-needed"})
			stack = append(stack, frameAsNeeded)
		case top == frameOutputFormat:
			// discarded
		case top == frameExtern:
			ret = append(ret, Flag{"--undefined=" + tok})
		case strings.HasPrefix(tok, "-l:"):
			ret = append(ret, Library{Absolute: true, Name: tok[3:]})
		case strings.HasPrefix(tok, "-l"):
			ret = append(ret, Library{Name: tok[2:]})
		case strings.HasPrefix(tok, "-"):
			ret = append(ret, Flag{tok})
		default:
			path := tok
			if !filepath.IsAbs(path) && dir != "" {
				path = filepath.Join(dir, path)
			}
			ret = append(ret, File{Path: path})
		}
	}

	if len(stack) != 0 {
		return nil
	}
	if ret == nil {
		// a valid but empty script is still a parse
		ret = []Input{}
	}
	return ret
}

// ParseLinkerScriptFile reads path through the sniffer (honoring test
// overrides) and parses it; nil when unreadable or not a script.
func ParseLinkerScriptFile(sn *filetype.Sniffer, path string) []Input {
	data, err := sn.ReadAll(path)
	if err != nil {
		return nil
	}
	return ParseLinkerScript(string(data), filepath.Dir(path))
}

// IsLinkerScript reports whether path both looks like and parses as a
// linker script.
func IsLinkerScript(sn *filetype.Sniffer, path string) bool {
	return sn.CouldBeLinkerScript(path) && ParseLinkerScriptFile(sn, path) != nil
}
