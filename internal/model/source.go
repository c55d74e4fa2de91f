package model

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Language is a family of source languages sharing a rule catalog.
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"
	LanguageJava       Language = "java"
	LanguageUnknown    Language = ""
)

// sniffLen is how many leading bytes are inspected for NUL
const sniffLen = 8000

var extLanguages = map[string]Language{
	"js":   LanguageJavaScript,
	"jsx":  LanguageJavaScript,
	"ts":   LanguageJavaScript,
	"tsx":  LanguageJavaScript,
	"py":   LanguagePython,
	"java": LanguageJava,
}

// LanguageOf returns the language family for a lower or upper case extension
// without the leading dot.
func LanguageOf(ext string) Language {
	return extLanguages[strings.ToLower(ext)]
}

// SourceFile is a file handed over to analysis.
type SourceFile struct {
	Name      string
	Content   []byte
	Extension string
}

func NewSourceFile(name string, content []byte) SourceFile {
	return SourceFile{
		Name:      name,
		Content:   content,
		Extension: extension(name),
	}
}

// ReadSourceFile reads r fully. Binary content is rejected with ErrNotText.
func ReadSourceFile(name string, r io.Reader) (SourceFile, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return SourceFile{}, fmt.Errorf("reading %s: %w", name, err)
	}
	return TextSourceFile(name, b)
}

// TextSourceFile returns a SourceFile backed by b, or ErrNotText when b
// looks binary. The caller must not modify b while the file is in use.
func TextSourceFile(name string, b []byte) (SourceFile, error) {
	head := b
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if bytes.IndexByte(head, 0) >= 0 || !utf8.Valid(b) {
		return SourceFile{}, fmt.Errorf("%s: %w", name, ErrNotText)
	}
	return NewSourceFile(name, b), nil
}

func (f SourceFile) Language() Language {
	return LanguageOf(f.Extension)
}

// LanguageHint is the extension of a recognized language or an empty string.
func (f SourceFile) LanguageHint() string {
	if f.Language() == LanguageUnknown {
		return ""
	}
	return f.Extension
}

func (f SourceFile) Text() string {
	return string(f.Content)
}

func extension(name string) string {
	base := filepath.Base(name)
	idx := strings.LastIndexByte(base, '.')
	if idx < 0 {
		return ""
	}
	return strings.ToLower(base[idx+1:])
}
