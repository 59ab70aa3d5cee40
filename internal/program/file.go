package program

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

// File is one Python source or stub file reachable from a search path.
type File struct {
	// Path is the display path: a filesystem path for on-disk roots and
	// "<vendored>/name.pyi" for the embedded stubs.
	Path string
	// Module is the dotted module name, e.g. "pkg.sub".
	Module string
	// IsStub reports a .pyi file.
	IsStub bool
	// IsPackage reports an __init__ file.
	IsPackage bool
	Source    []byte
	// Hash is the hex sha256 of Source.
	Hash string
	Kind SearchPathKind

	rel string
	sp  *SearchPath
}

// IsVendored reports whether the file is one of the embedded stubs.
func (f *File) IsVendored() bool {
	return f.Kind == Vendored
}

// Package returns the dotted name of the package containing the module:
// the module itself for an __init__ file, otherwise its parent.
func (f *File) Package() string {
	if f.IsPackage {
		return f.Module
	}
	if i := strings.LastIndexByte(f.Module, '.'); i >= 0 {
		return f.Module[:i]
	}
	return ""
}

func (f *File) String() string {
	return f.Path
}

// HashSource returns the hex sha256 of src.
func HashSource(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}

// moduleName derives the dotted module name from a slash path relative to a
// search root. ok is false when the path is not a Python file.
func moduleName(rel string) (name string, isStub, isPackage, ok bool) {
	ext := path.Ext(rel)
	switch ext {
	case ".py":
	case ".pyi":
		isStub = true
	default:
		return "", false, false, false
	}
	stem := strings.TrimSuffix(rel, ext)
	parts := strings.Split(stem, "/")
	if parts[len(parts)-1] == "__init__" {
		isPackage = true
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, "."), isStub, isPackage, true
}
