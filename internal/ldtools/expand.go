package ldtools

import (
	"fmt"
	"path/filepath"

	"wasm-driver/internal/filetype"
)

// privateFallbacks maps well-known symbolic library names to alternates
// tried only after the primary lib<name>.{so,a} chain misses.
var privateFallbacks = map[string][]string{
	"pthread":  {"libpthread_private.so", "libpthread_private.a"},
	"c":        {"libc.bc"},
	"dlmalloc": {"dlmalloc.bc"},
}

// absoluteFallbacks does the same for exact -l:name references.
var absoluteFallbacks = map[string][]string{
	"libpnacl_irt_shim.a": {"libpnacl_irt_shim_dummy.a"},
}

// checkFile accepts a candidate path if it exists and is either a linker
// script (scripts bypass the type filter, expansion sorts them out) or
// allowed by the type policy.
func checkFile(sn *filetype.Sniffer, path string, allowed AllowedTypes) bool {
	if !sn.FileExists(path) {
		return false
	}
	if IsLinkerScript(sn, path) {
		return true
	}
	return allowed.Check(sn, path)
}

// findFile searches each directory in order for an exact filename.
func findFile(sn *filetype.Sniffer, name string, search []string, allowed AllowedTypes) string {
	for _, dir := range search {
		full := filepath.Join(dir, name)
		if checkFile(sn, full, allowed) {
			return full
		}
	}
	return ""
}

// resolveLibrary locates the file a Library reference names, or "" when
// nothing matches. Symbolic references probe lib<name>.so then lib<name>.a
// within each directory before moving on; static-only skips the .so probe.
func resolveLibrary(sn *filetype.Sniffer, lib Library, search []string, staticOnly bool) string {
	if lib.Absolute {
		if p := findFile(sn, lib.Name, search, lib.Allowed); p != "" {
			return p
		}
		for _, alt := range absoluteFallbacks[lib.Name] {
			if p := findFile(sn, alt, search, lib.Allowed); p != "" {
				return p
			}
		}
		return ""
	}

	for _, dir := range search {
		if !staticOnly {
			if p := filepath.Join(dir, "lib"+lib.Name+".so"); checkFile(sn, p, lib.Allowed) {
				return p
			}
		}
		if p := filepath.Join(dir, "lib"+lib.Name+".a"); checkFile(sn, p, lib.Allowed) {
			return p
		}
	}
	for _, alt := range privateFallbacks[lib.Name] {
		if p := findFile(sn, alt, search, lib.Allowed); p != "" {
			return p
		}
	}
	return ""
}

// ExpandInput resolves one input against the search paths. Flags pass
// through; files that parse as linker scripts are replaced by the recursive
// expansion of their contents; library references resolve to concrete paths
// re-tagged with their sniffed type so consumers can bucket inputs without
// sniffing again. An unresolvable library is a hard error naming the exact
// reference.
func ExpandInput(sn *filetype.Sniffer, in Input, search []string, staticOnly bool) ([]Input, error) {
	switch v := in.(type) {
	case Flag:
		return []Input{v}, nil

	case File:
		if sn.CouldBeLinkerScript(v.Path) {
			if parsed := ParseLinkerScriptFile(sn, v.Path); parsed != nil {
				return expandAll(sn, parsed, search, staticOnly)
			}
		}
		return []Input{v}, nil

	case Library:
		found := resolveLibrary(sn, v, search, staticOnly)
		if found == "" {
			return nil, fmt.Errorf("`%s` not found", v)
		}
		if IsLinkerScript(sn, found) {
			return expandAll(sn, ParseLinkerScriptFile(sn, found), search, staticOnly)
		}
		allowed := AllowedNative
		if !sn.IsNative(found) {
			allowed = AllowedBitcode
		}
		return []Input{Library{Absolute: true, Name: found, Allowed: allowed}}, nil
	}
	return []Input{in}, nil
}

func expandAll(sn *filetype.Sniffer, ins []Input, search []string, staticOnly bool) ([]Input, error) {
	out := make([]Input, 0, len(ins))
	for _, in := range ins {
		exp, err := ExpandInput(sn, in, search, staticOnly)
		if err != nil {
			return nil, err
		}
		out = append(out, exp...)
	}
	return out, nil
}

// ExpandInputs expands a whole input list in order.
func ExpandInputs(sn *filetype.Sniffer, ins []Input, search []string, staticOnly bool) ([]Input, error) {
	return expandAll(sn, ins, search, staticOnly)
}
