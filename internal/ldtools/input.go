// Package ldtools holds the linker-facing input model: the linker-script
// parser and the search-path resolution that turns -l references, script
// files and flags into concrete, type-tagged inputs.
package ldtools

import (
	"wasm-driver/internal/filetype"
)

// Input is one linker input: a library reference, a file path, or a raw
// flag passed through to the underlying linker.
type Input interface {
	String() string
	input()
}

// Library references either an exact filename to locate in the search
// paths (Absolute, from -l:name) or a symbolic lib<name>.{so,a} lookup.
type Library struct {
	Absolute bool
	Name     string
	Allowed  AllowedTypes
}

// File is a concrete path given directly on the command line or named by a
// linker script.
type File struct {
	Path string
}

// Flag is passed through verbatim.
type Flag struct {
	Text string
}

func (l Library) String() string {
	if l.Absolute {
		return "-l:" + l.Name
	}
	return "-l" + l.Name
}

func (f File) String() string { return f.Path }

func (f Flag) String() string { return f.Text }

func (Library) input() {}
func (File) input()    {}
func (Flag) input()    {}

// AllowedTypes filters resolution candidates by their sniffed type.
type AllowedTypes uint8

const (
	AllowedAny AllowedTypes = iota
	AllowedBitcode
	AllowedNative
)

func (a AllowedTypes) Check(sn *filetype.Sniffer, path string) bool {
	switch a {
	case AllowedBitcode:
		return !sn.IsNative(path)
	case AllowedNative:
		return sn.IsNative(path)
	}
	return true
}
