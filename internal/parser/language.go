package parser

import (
	"path/filepath"
	"strings"
)

// languages maps file extensions to the code fence language used when
// quoting them.
var languages = map[string]string{
	"c":     "c",
	"cc":    "cpp",
	"cpp":   "cpp",
	"cs":    "csharp",
	"css":   "css",
	"go":    "go",
	"h":     "c",
	"hpp":   "cpp",
	"java":  "java",
	"js":    "javascript",
	"json":  "json",
	"jsx":   "jsx",
	"kt":    "kotlin",
	"lua":   "lua",
	"php":   "php",
	"py":    "python",
	"rb":    "ruby",
	"rs":    "rust",
	"sh":    "bash",
	"sql":   "sql",
	"swift": "swift",
	"toml":  "toml",
	"ts":    "typescript",
	"tsx":   "tsx",
	"xml":   "xml",
	"yaml":  "yaml",
	"yml":   "yaml",
}

// LanguageFor returns the fence language for filename, or "".
func LanguageFor(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return languages[ext]
}
