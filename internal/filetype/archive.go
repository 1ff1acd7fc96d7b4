package filetype

import (
	"bytes"
	"io"
	"strconv"
	"strings"
)

// arHdr is the fixed 60-byte SysV archive member header.
type arHdr struct {
	Name [16]byte
	Date [12]byte
	Uid  [6]byte
	Gid  [6]byte
	Mode [8]byte
	Size [10]byte
	Fmag [2]byte
}

const arHdrSize = 60

func (a *arHdr) startsWith(s string) bool {
	return string(a.Name[:len(s)]) == s
}

func (a *arHdr) isStrtab() bool {
	return a.startsWith("// ")
}

func (a *arHdr) isSymtab() bool {
	return a.startsWith("/ ") || a.startsWith("/SYM64/ ") ||
		a.startsWith("#_LLVM_SYM_TAB_#") || a.startsWith("__.SYMDEF")
}

func (a *arHdr) size() (int64, bool) {
	sz, err := strconv.ParseInt(strings.TrimSpace(string(a.Size[:])), 10, 64)
	if err != nil || sz < 0 {
		return 0, false
	}
	return sz, true
}

func parseArHdr(buf []byte) (arHdr, bool) {
	var hdr arHdr
	if len(buf) < arHdrSize {
		return hdr, false
	}
	copy(hdr.Name[:], buf[0:16])
	copy(hdr.Date[:], buf[16:28])
	copy(hdr.Uid[:], buf[28:34])
	copy(hdr.Gid[:], buf[34:40])
	copy(hdr.Mode[:], buf[40:48])
	copy(hdr.Size[:], buf[48:58])
	copy(hdr.Fmag[:], buf[58:60])
	return hdr, bytes.Equal(hdr.Fmag[:], []byte("`\n"))
}

// archiveSubtype sniffs the first regular archive member to decide whether
// the archive holds bitcode. Symbol tables and the long-name string table
// are skipped. Thin archives keep member contents out of line, so their
// subtype is never bitcode. The stream position is restored on return.
func archiveSubtype(r io.ReadSeeker) Subtype {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return SubtypeNone
	}
	defer r.Seek(pos, io.SeekStart)

	magic := make([]byte, len(arMagic))
	if _, err := io.ReadFull(r, magic); err != nil || !bytes.Equal(magic, arMagic) {
		return SubtypeNone
	}

	hdrBuf := make([]byte, arHdrSize)
	for {
		if _, err := io.ReadFull(r, hdrBuf); err != nil {
			return SubtypeNone
		}
		hdr, ok := parseArHdr(hdrBuf)
		if !ok {
			return SubtypeNone
		}
		size, ok := hdr.size()
		if !ok {
			return SubtypeNone
		}
		if hdr.isSymtab() || hdr.isStrtab() {
			// member bodies are 2-byte aligned
			skip := size + size%2
			if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
				return SubtypeNone
			}
			continue
		}
		if IsStreamBitcode(r) {
			return SubtypeBitcode
		}
		return SubtypeNone
	}
}
