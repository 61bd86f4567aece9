package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Document is a source file rendered as quotable text. Ranges and subpaths
// address Text, so every loader must produce the same Text for the same
// input.
type Document struct {
	Title string
	Text  string

	// Markdown reports whether Text is markdown that can carry headings,
	// block ids and lists.
	Markdown bool

	// Language tags the code fence that wraps quotes from non-markdown text.
	Language string
}

// Parser converts raw document bytes into quotable text.
type Parser interface {
	Parse(r io.Reader, filename string) (*Document, error)
}

// SupportedExtensions lists the extensions with a dedicated loader. Other
// text files are quoted verbatim.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// binaryExtensions cannot be quoted as text.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".mp3": true, ".mp4": true, ".zip": true, ".gz": true, ".exe": true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	}
	if binaryExtensions[ext] {
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
	return &TextParser{Language: LanguageFor(filename)}, nil
}

// Load parses data with the parser for filename.
func Load(filename string, data []byte) (*Document, error) {
	p, err := ForFile(filename)
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse(strings.NewReader(string(data)), filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filename, err)
	}
	return doc, nil
}

// IsSupportedExtension checks if a file extension has a dedicated loader.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// IsMarkdown reports whether filename is a markdown note.
func IsMarkdown(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".md" || ext == ".markdown"
}

func trimExt(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
