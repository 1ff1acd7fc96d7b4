package filetype

import (
	"bytes"
	"io"
	"os"
	"sync"
)

// Sniffer memoizes file classifications and owns the test-only contents
// overrides. Callers construct one per run context and thread it through;
// the lock exists for interior mutability, execution is single-threaded.
type Sniffer struct {
	mu       sync.Mutex
	types    map[string]Type
	contents map[string][]byte
}

func NewSniffer() *Sniffer {
	return &Sniffer{
		types:    make(map[string]Type),
		contents: make(map[string][]byte),
	}
}

// Override forces the cached type of a path without touching the filesystem.
func (s *Sniffer) Override(path string, t Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[path] = t
}

// Clear removes a single cached classification.
func (s *Sniffer) Clear(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.types, path)
}

// ClearAll drops every cached classification.
func (s *Sniffer) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types = make(map[string]Type)
}

// OverrideContents serves the given bytes for a path instead of opening it.
func (s *Sniffer) OverrideContents(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contents[path] = data
}

// ClearContents removes a contents override.
func (s *Sniffer) ClearContents(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contents, path)
}

func (s *Sniffer) cached(path string) (Type, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.types[path]
	return t, ok
}

// openStream yields a seekable stream for path, honoring contents overrides.
func (s *Sniffer) openStream(path string) (io.ReadSeeker, func(), error) {
	s.mu.Lock()
	data, ok := s.contents[path]
	s.mu.Unlock()
	if ok {
		return bytes.NewReader(data), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// FileExists reports whether the path resolves, counting overridden contents.
func (s *Sniffer) FileExists(path string) bool {
	s.mu.Lock()
	_, ok := s.contents[path]
	s.mu.Unlock()
	if ok {
		return true
	}
	_, err := os.Stat(path)
	return err == nil
}

// FileType classifies a path, memoizing the result. An unrecognized file
// yields a zero Type and is cached too, so repeat calls do no further I/O.
func (s *Sniffer) FileType(path string) (Type, error) {
	if t, ok := s.cached(path); ok {
		return t, nil
	}
	r, done, err := s.openStream(path)
	if err != nil {
		return Type{}, err
	}
	defer done()
	t := classifyStream(r)
	s.Override(path, t)
	return t, nil
}

// IsNative reports whether a file should be fed to the native half of the
// toolchain. Only bitcode objects, pexes and bitcode archives are portable;
// anything the probes do not recognize is assumed native.
func (s *Sniffer) IsNative(path string) bool {
	t, err := s.FileType(path)
	if err != nil {
		return false
	}
	if t.Kind == KindPexe || t.Bitcode() {
		return false
	}
	return true
}

// CouldBeLinkerScript is the cheap pre-filter before attempting a parse:
// a plausible extension on something that is neither an archive nor bitcode.
func (s *Sniffer) CouldBeLinkerScript(path string) bool {
	if !couldBeLinkerScriptExt(path) {
		return false
	}
	if t, ok := s.cached(path); ok {
		return t.Kind != KindArchive && !t.Bitcode()
	}
	r, done, err := s.openStream(path)
	if err != nil {
		// unopenable files keep the benefit of the doubt; the parse
		// attempt decides
		return true
	}
	defer done()
	return !IsStreamArchive(r) && !IsStreamRawBitcode(r) && !IsStreamWrappedBitcode(r)
}

// ReadAll returns the file contents, honoring overrides.
func (s *Sniffer) ReadAll(path string) ([]byte, error) {
	s.mu.Lock()
	data, ok := s.contents[path]
	s.mu.Unlock()
	if ok {
		return data, nil
	}
	return os.ReadFile(path)
}
