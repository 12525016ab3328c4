package frontend

import (
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// extToLanguage maps file extensions to canonical language names. ArkTS
// sources are parsed with the TypeScript grammar after the marker pre-pass.
var extToLanguage = map[string]string{
	".ets": "typescript",
	".ts":  "typescript",
	".mts": "typescript",
	".cts": "typescript",
}

var (
	grammar     *sitter.Language
	grammarOnce sync.Once
)

func typescript() *sitter.Language {
	grammarOnce.Do(func() {
		grammar = ts.GetLanguage()
	})
	return grammar
}

// LanguageForFile returns the canonical language name for a file path based
// on its extension. Returns ("", false) if the extension is not recognized.
func LanguageForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extToLanguage[ext]
	return lang, ok
}

// Extensions lists the recognized source extensions in sorted order.
func Extensions() []string {
	return slices.Sorted(maps.Keys(extToLanguage))
}
