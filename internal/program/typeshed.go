package program

import (
	"embed"
	"io/fs"
)

//go:embed typeshed/*.pyi
var typeshed embed.FS

// Typeshed returns the vendored stub files rooted at their module paths.
func Typeshed() fs.FS {
	sub, err := fs.Sub(typeshed, "typeshed")
	if err != nil {
		panic(err)
	}
	return sub
}
