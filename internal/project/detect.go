package project

import (
	"os"
	"path/filepath"
)

// marker maps a file whose presence identifies a toolchain to its commands.
type marker struct {
	file     string
	commands Commands
}

// markers are checked in order; the first hit wins.
var markers = []marker{
	{"go.mod", Commands{LanguageGo, "go vet ./...", "go build ./...", "go test ./..."}},
	{"Cargo.toml", Commands{LanguageRust, "cargo clippy -- -D warnings", "cargo build", "cargo test"}},
	{"package.json", Commands{LanguageJavaScript, "npm run lint", "npm run build", "npm test"}},
	{"pyproject.toml", Commands{LanguagePython, "ruff check .", "python -m compileall -q .", "pytest"}},
	{"requirements.txt", Commands{LanguagePython, "ruff check .", "python -m compileall -q .", "pytest"}},
}

var generic = Commands{LanguageGeneric, "make lint", "make build", "make test"}

func detect(dir string) Commands {
	for _, m := range markers {
		if !exists(filepath.Join(dir, m.file)) {
			continue
		}
		cmds := m.commands
		if cmds.Language == LanguageJavaScript && exists(filepath.Join(dir, "tsconfig.json")) {
			cmds.Language = LanguageTypeScript
		}
		return cmds
	}
	return generic
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
