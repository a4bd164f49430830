// Package catalog embeds the built-in RxJava 2 to Reactor rule catalog.
//
// Rule files are loaded in name order, and rules keep their order inside a
// file, so rules that must win over more general ones come first.
package catalog

import (
	"embed"
	"io/fs"
	"sync"

	"github.com/roach88/rxmigrate/internal/compiler"
)

//go:embed rules/*.cue
var sources embed.FS

// FS returns the catalog source files.
func FS() fs.FS {
	sub, err := fs.Sub(sources, "rules")
	if err != nil {
		// The directory is embedded; Sub only fails on an invalid name.
		panic(err)
	}
	return sub
}

// Load compiles the embedded catalog.
func Load(opts ...compiler.Option) (*compiler.Catalog, error) {
	return compiler.LoadFS(FS(), opts...)
}

// Default returns the embedded catalog, compiled once per process.
var Default = sync.OnceValues(func() (*compiler.Catalog, error) {
	return Load()
})
