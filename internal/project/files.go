package project

import (
	"path/filepath"
	"strings"
)

// SuggestedTestFiles returns test file paths, relative to the project, for a feature stem.
// The stem is a slug (lowercase, hyphen separated).
func SuggestedTestFiles(lang Language, stem string) []string {
	snake := strings.ReplaceAll(stem, "-", "_")
	switch lang {
	case LanguageGo:
		return []string{snake + "_test.go"}
	case LanguageRust:
		return []string{filepath.Join("tests", snake+".rs")}
	case LanguageTypeScript:
		return []string{filepath.Join("src", stem+".test.ts")}
	case LanguageJavaScript:
		return []string{filepath.Join("src", stem+".test.js")}
	case LanguagePython:
		return []string{filepath.Join("tests", "test_"+snake+".py")}
	default:
		return []string{}
	}
}

// SuggestedImplementationFiles returns source file paths for a feature stem.
func SuggestedImplementationFiles(lang Language, stem string) []string {
	snake := strings.ReplaceAll(stem, "-", "_")
	switch lang {
	case LanguageGo:
		return []string{snake + ".go"}
	case LanguageRust:
		return []string{filepath.Join("src", snake+".rs")}
	case LanguageTypeScript:
		return []string{filepath.Join("src", stem+".ts")}
	case LanguageJavaScript:
		return []string{filepath.Join("src", stem+".js")}
	case LanguagePython:
		return []string{snake + ".py"}
	default:
		return []string{}
	}
}
