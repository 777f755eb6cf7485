package project

import (
	"path"
	"strings"
)

// CompileOptions is the configuration the worker compiles from.
type CompileOptions struct {
	Target      string            `json:"target" msgpack:"target"`
	SourceFiles []string          `json:"sourceFiles" msgpack:"sourceFiles"`
	FileSystem  map[string]string `json:"fileSystem" msgpack:"fileSystem"`
}

// ArtifactName is the output file holding the target binary image.
func (o *CompileOptions) ArtifactName() string {
	return o.Target + ".hex"
}

// IsSourceFile reports whether a package file is compiled (as opposed to
// being shipped only in the file system snapshot).
func IsSourceFile(name string) bool {
	return strings.EqualFold(path.Ext(name), ".ts")
}
