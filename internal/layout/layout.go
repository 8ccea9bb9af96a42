// Package layout maps stylesheet sources onto their output locations.
//
// A build session has exactly two source roots, Internal and External, each
// paired with one output root. Every source file maps to exactly one output
// file with the same relative path. The mapping is a pure path computation
// and never touches the filesystem.
package layout

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Root identifies one of the two source roots.
type Root int

const (
	// Internal is the resources root packaged with the application.
	Internal Root = iota
	// External is the standalone assets root served from the runtime directory.
	External
)

// String returns the lower-case name of the root.
func (r Root) String() string {
	switch r {
	case Internal:
		return "internal"
	case External:
		return "external"
	default:
		return fmt.Sprintf("root(%d)", int(r))
	}
}

// Roots holds the four absolute directories of a build session.
// A Roots value is immutable once constructed.
type Roots struct {
	InternalSource string
	InternalOutput string
	ExternalSource string
	ExternalOutput string
}

// NewRoots resolves the given directories against baseDir and returns the
// cleaned absolute Roots. Directories that are already absolute are kept.
func NewRoots(baseDir, internalSource, internalOutput, externalSource, externalOutput string) (Roots, error) {
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return Roots{}, fmt.Errorf("resolving base directory %q: %w", baseDir, err)
	}

	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}

		return filepath.Join(base, p)
	}

	return Roots{
		InternalSource: resolve(internalSource),
		InternalOutput: resolve(internalOutput),
		ExternalSource: resolve(externalSource),
		ExternalOutput: resolve(externalOutput),
	}, nil
}

// SourceRoot pairs a source directory with its output directory.
type SourceRoot struct {
	Root   Root
	Source string
	Output string
}

// Mapper computes output locations and acceptance for stylesheet files.
type Mapper struct {
	roots     Roots
	extension string
}

// NewMapper creates a Mapper for roots. The extension is matched exactly
// and may be given with or without the leading dot.
func NewMapper(roots Roots, extension string) *Mapper {
	return &Mapper{
		roots:     roots,
		extension: "." + strings.TrimPrefix(extension, "."),
	}
}

// Roots returns the configured roots.
func (m *Mapper) Roots() Roots { return m.roots }

// Extension returns the stylesheet extension including the leading dot.
func (m *Mapper) Extension() string { return m.extension }

// Sources lists the source roots in scan order: Internal, then External.
func (m *Mapper) Sources() []SourceRoot {
	return []SourceRoot{
		{Root: Internal, Source: m.roots.InternalSource, Output: m.roots.InternalOutput},
		{Root: External, Source: m.roots.ExternalSource, Output: m.roots.ExternalOutput},
	}
}

// RootOf reports which root OutputFor selects for file. A file whose
// absolute path starts with the internal source root is Internal; every
// other file is External, including files outside both roots.
func (m *Mapper) RootOf(file string) Root {
	if strings.HasPrefix(absolute(file), m.roots.InternalSource) {
		return Internal
	}

	return External
}

// OutputFor returns the output file for the given source file.
//
// The relative part is the parent directory with the source root cut off by
// length. The external root is never checked, so a file outside both roots
// still lands somewhere under the external output root.
func (m *Mapper) OutputFor(file string) string {
	abs := absolute(file)

	source, output := m.roots.ExternalSource, m.roots.ExternalOutput
	if m.RootOf(abs) == Internal {
		source, output = m.roots.InternalSource, m.roots.InternalOutput
	}

	parent := filepath.Dir(abs)

	rel := ""
	if len(parent) > len(source) {
		rel = parent[len(source):]
	}

	return filepath.Join(output, rel, filepath.Base(abs))
}

// Contains reports whether file lies inside one of the two source roots.
func (m *Mapper) Contains(file string) bool {
	abs := absolute(file)

	return within(abs, m.roots.InternalSource) || within(abs, m.roots.ExternalSource)
}

// HasExtension reports whether file carries the stylesheet extension.
// The comparison is case-sensitive.
func (m *Mapper) HasExtension(file string) bool {
	return filepath.Ext(file) == m.extension
}

// Accept reports whether file is a stylesheet inside one of the source roots.
func (m *Mapper) Accept(file string) bool {
	return m.Contains(file) && m.HasExtension(file)
}

func absolute(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}

	return abs
}

func within(path, dir string) bool {
	if path == dir {
		return false
	}

	return strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}
