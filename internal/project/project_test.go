package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/featureflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir string, files ...string) {
	t.Helper()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte{}, 0o644))
	}
}

func TestDetect_Languages(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  Language
		lint  string
		build string
		test  string
	}{
		{"go", []string{"go.mod"}, LanguageGo, "go vet ./...", "go build ./...", "go test ./..."},
		{"rust", []string{"Cargo.toml"}, LanguageRust, "cargo clippy -- -D warnings", "cargo build", "cargo test"},
		{"javascript", []string{"package.json"}, LanguageJavaScript, "npm run lint", "npm run build", "npm test"},
		{"typescript", []string{"package.json", "tsconfig.json"}, LanguageTypeScript, "npm run lint", "npm run build", "npm test"},
		{"python pyproject", []string{"pyproject.toml"}, LanguagePython, "ruff check .", "python -m compileall -q .", "pytest"},
		{"python requirements", []string{"requirements.txt"}, LanguagePython, "ruff check .", "python -m compileall -q .", "pytest"},
		{"generic", nil, LanguageGeneric, "make lint", "make build", "make test"},
		{"go wins over package.json", []string{"package.json", "go.mod"}, LanguageGo, "go vet ./...", "go build ./...", "go test ./..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			touch(t, dir, tt.files...)

			got, err := Detect(dir, config.CommandsConfig{})
			require.NoError(t, err)
			assert.Equal(t, Commands{Language: tt.want, Lint: tt.lint, Build: tt.build, Test: tt.test}, got)
		})
	}
}

func TestDetect_Precedence(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "go.mod")
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`
[commands]
test = "go test -race ./..."
`), 0o644))

	got, err := Detect(dir, config.CommandsConfig{Lint: "golangci-lint run", Test: "gotestsum"})
	require.NoError(t, err)

	assert.Equal(t, LanguageGo, got.Language)
	assert.Equal(t, "golangci-lint run", got.Lint, "global override beats detection")
	assert.Equal(t, "go build ./...", got.Build, "detection kept when nothing overrides")
	assert.Equal(t, "go test -race ./...", got.Test, "project file beats global override")
}

func TestDetect_InvalidProjectFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("[commands\nlint = "), 0o644))

	_, err := Detect(dir, config.CommandsConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTOML))
}

func TestDetect_UnknownKey(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("[commands]\nfmt = \"gofmt\"\n"), 0o644))

	_, err := Detect(dir, config.CommandsConfig{})
	require.ErrorIs(t, err, ErrInvalidTOML)
	assert.Contains(t, err.Error(), "commands.fmt")
}

func TestDetect_NotDirectory(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "file.txt")

	_, err := Detect(filepath.Join(dir, "file.txt"), config.CommandsConfig{})
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = Detect(filepath.Join(dir, "missing"), config.CommandsConfig{})
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestSuggestedFiles(t *testing.T) {
	tests := []struct {
		lang Language
		test []string
		impl []string
	}{
		{LanguageGo, []string{"dark_mode_test.go"}, []string{"dark_mode.go"}},
		{LanguageRust, []string{filepath.Join("tests", "dark_mode.rs")}, []string{filepath.Join("src", "dark_mode.rs")}},
		{LanguageTypeScript, []string{filepath.Join("src", "dark-mode.test.ts")}, []string{filepath.Join("src", "dark-mode.ts")}},
		{LanguageJavaScript, []string{filepath.Join("src", "dark-mode.test.js")}, []string{filepath.Join("src", "dark-mode.js")}},
		{LanguagePython, []string{filepath.Join("tests", "test_dark_mode.py")}, []string{"dark_mode.py"}},
		{LanguageGeneric, []string{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.lang), func(t *testing.T) {
			assert.Equal(t, tt.test, SuggestedTestFiles(tt.lang, "dark-mode"))
			assert.Equal(t, tt.impl, SuggestedImplementationFiles(tt.lang, "dark-mode"))
		})
	}
}
