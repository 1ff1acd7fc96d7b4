// Package filetype classifies toolchain inputs by magic bytes: LLVM bitcode
// (raw or wrapped in the object-wrapper magic), portable bitcode executables,
// wasm modules, and ar archives whose members are inspected for bitcode.
package filetype

import (
	"bytes"
	"io"
	"path/filepath"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindObject
	KindArchive
	KindPexe
	KindWasm
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArchive:
		return "archive"
	case KindPexe:
		return "pexe"
	case KindWasm:
		return "wasm"
	}
	return "unknown"
}

type Subtype uint8

const (
	SubtypeNone Subtype = iota
	SubtypeBitcode
)

// Type tags a file kind plus, for objects and archives, its subtype.
type Type struct {
	Kind    Kind
	Subtype Subtype
}

// Known reports whether the classifier recognized the file at all.
func (t Type) Known() bool {
	return t.Kind != KindUnknown
}

// Bitcode reports whether the file holds LLVM bitcode, directly or as an
// archive of bitcode members.
func (t Type) Bitcode() bool {
	return (t.Kind == KindObject || t.Kind == KindArchive) && t.Subtype == SubtypeBitcode
}

var (
	rawBitcodeMagic     = []byte{'B', 'C', 0xc0, 0xde}
	wrappedBitcodeMagic = []byte{0xde, 0xc0, 0x17, 0x0b}
	pexeMagic           = []byte("PEXE")
	wasmMagic           = []byte{0, 'a', 's', 'm'}
	arMagic             = []byte("!<arch>\n")
	thinArMagic         = []byte("!<thin>\n")
)

// readPrefix reads n bytes from the current position and seeks back, so
// consumers sharing the stream are unaffected. ok is false on short reads.
func readPrefix(r io.ReadSeeker, n int) (buf []byte, ok bool) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, false
	}
	buf = make([]byte, n)
	read, err := io.ReadFull(r, buf)
	if _, serr := r.Seek(pos, io.SeekStart); serr != nil {
		return nil, false
	}
	return buf, err == nil && read == n
}

func hasStreamMagic(r io.ReadSeeker, magics ...[]byte) bool {
	var longest int
	for _, m := range magics {
		if len(m) > longest {
			longest = len(m)
		}
	}
	buf, ok := readPrefix(r, longest)
	if !ok {
		return false
	}
	for _, m := range magics {
		if bytes.Equal(buf[:len(m)], m) {
			return true
		}
	}
	return false
}

func IsStreamRawBitcode(r io.ReadSeeker) bool {
	return hasStreamMagic(r, rawBitcodeMagic)
}

func IsStreamWrappedBitcode(r io.ReadSeeker) bool {
	return hasStreamMagic(r, wrappedBitcodeMagic)
}

// IsStreamBitcode accepts both the raw and the wrapped form.
func IsStreamBitcode(r io.ReadSeeker) bool {
	return hasStreamMagic(r, rawBitcodeMagic, wrappedBitcodeMagic)
}

func IsStreamPexe(r io.ReadSeeker) bool {
	return hasStreamMagic(r, pexeMagic)
}

func IsStreamWasm(r io.ReadSeeker) bool {
	return hasStreamMagic(r, wasmMagic)
}

func IsStreamArchive(r io.ReadSeeker) bool {
	return hasStreamMagic(r, arMagic, thinArMagic)
}

// classifyStream runs the magic probes in priority order. The stream
// position is unchanged on return.
func classifyStream(r io.ReadSeeker) Type {
	switch {
	case IsStreamBitcode(r):
		return Type{Kind: KindObject, Subtype: SubtypeBitcode}
	case IsStreamPexe(r):
		return Type{Kind: KindPexe}
	case IsStreamWasm(r):
		return Type{Kind: KindWasm}
	case IsStreamArchive(r):
		return Type{Kind: KindArchive, Subtype: archiveSubtype(r)}
	}
	return Type{}
}

var scriptExts = map[string]bool{
	".o":  true,
	".so": true,
	".a":  true,
	".po": true,
	".pa": true,
	".x":  true,
}

// couldBeLinkerScriptExt is the extension half of the linker-script
// heuristic; the Sniffer adds the content checks.
func couldBeLinkerScriptExt(path string) bool {
	return scriptExts[filepath.Ext(path)]
}
