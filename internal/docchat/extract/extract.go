// Package extract turns uploaded files into plain text.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for file extensions without a
	// registered extractor.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrCorruptFile is returned when a file matches a supported format
	// but cannot be parsed.
	ErrCorruptFile = errors.New("document file is corrupt or unreadable")

	// ErrEmptyText is returned when extraction yields no usable text.
	ErrEmptyText = errors.New("document contains no extractable text")
)

// Extractor converts one file format into plain text.
type Extractor interface {
	// Extract returns the plain text content of data.
	Extract(data []byte) (string, error)
}

// Manager routes files to extractors by extension.
type Manager struct {
	extractors map[string]Extractor
}

// NewManager creates a manager with the built-in extractors registered.
func NewManager() *Manager {
	m := &Manager{extractors: make(map[string]Extractor)}
	plain := &PlainText{}
	m.Register(".txt", plain)
	m.Register(".md", plain)
	m.Register(".docx", &Docx{})
	return m
}

// Register adds an extractor for the given extension (including the dot).
func (m *Manager) Register(ext string, e Extractor) {
	m.extractors[strings.ToLower(ext)] = e
}

// Formats lists the supported extensions in sorted order.
func (m *Manager) Formats() []string {
	formats := make([]string, 0, len(m.extractors))
	for ext := range m.extractors {
		formats = append(formats, ext)
	}
	sort.Strings(formats)
	return formats
}

// Extract picks the extractor by the filename extension, runs it, and
// normalizes the result. The returned format is the lowercase extension.
func (m *Manager) Extract(filename string, data []byte) (text string, format string, err error) {
	ext := strings.ToLower(filepath.Ext(filename))
	extractor, ok := m.extractors[ext]
	if !ok {
		return "", ext, fmt.Errorf("%w: %q (supported: %s)",
			ErrUnsupportedFormat, ext, strings.Join(m.Formats(), ", "))
	}

	text, err = extractor.Extract(data)
	if err != nil {
		return "", ext, err
	}

	if strings.TrimSpace(text) == "" {
		return "", ext, ErrEmptyText
	}

	return text, ext, nil
}
