// Package project detects a project's language and the lint, build and test
// commands a workflow runs against it.
//
// Precedence, lowest first:
//   - detection from marker files (go.mod, Cargo.toml, package.json, ...)
//   - the global [commands] section of the featureflow config
//   - <project>/.featureflow.toml [commands]
package project

import (
	"errors"
	"fmt"
	"os"

	"github.com/fyrsmithlabs/featureflow/internal/config"
)

// Language identifies a detected project toolchain.
type Language string

const (
	LanguageGo         Language = "go"
	LanguageRust       Language = "rust"
	LanguageTypeScript Language = "typescript"
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"
	LanguageGeneric    Language = "generic"
)

var (
	// ErrNotDirectory indicates the project path is missing or not a directory.
	ErrNotDirectory = errors.New("project path is not a directory")

	// ErrInvalidTOML indicates a malformed .featureflow.toml.
	ErrInvalidTOML = errors.New("invalid project config")
)

// Commands is the verification command set persisted with a workflow.
type Commands struct {
	Language Language `json:"language"`
	Lint     string   `json:"lint"`
	Build    string   `json:"build"`
	Test     string   `json:"test"`
}

// Detect resolves the commands for projectPath.
func Detect(projectPath string, global config.CommandsConfig) (Commands, error) {
	info, err := os.Stat(projectPath)
	if err != nil {
		return Commands{}, fmt.Errorf("%w: %v", ErrNotDirectory, err)
	}
	if !info.IsDir() {
		return Commands{}, ErrNotDirectory
	}

	cmds := detect(projectPath)
	cmds.apply(global.Lint, global.Build, global.Test)

	local, err := loadProjectFile(projectPath)
	if err != nil {
		return Commands{}, err
	}
	if local != nil {
		cmds.apply(local.Commands.Lint, local.Commands.Build, local.Commands.Test)
	}

	return cmds, nil
}

// apply overrides non-empty values.
func (c *Commands) apply(lint, build, test string) {
	if lint != "" {
		c.Lint = lint
	}
	if build != "" {
		c.Build = build
	}
	if test != "" {
		c.Test = test
	}
}
