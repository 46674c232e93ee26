package project

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the per-project override file.
const FileName = ".featureflow.toml"

// projectFile is the schema of .featureflow.toml:
//
//	[commands]
//	lint = "golangci-lint run"
//	test = "go test -race ./..."
type projectFile struct {
	Commands struct {
		Lint  string `toml:"lint"`
		Build string `toml:"build"`
		Test  string `toml:"test"`
	} `toml:"commands"`
}

// loadProjectFile reads .featureflow.toml. A missing file returns nil, nil.
func loadProjectFile(dir string) (*projectFile, error) {
	path := filepath.Join(dir, FileName)
	var pf projectFile
	md, err := toml.DecodeFile(path, &pf)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, FileName, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: %s: unknown key %q", ErrInvalidTOML, FileName, undecoded[0].String())
	}
	return &pf, nil
}
