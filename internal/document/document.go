// Package document converts capture files into page-marked text the
// router and extraction engine can consume. Every extractor emits text
// annotated with "[Page N]" markers at page boundaries.
package document

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Stats summarizes an extracted document.
type Stats struct {
	PageCount  int
	TableCount int
	CharCount  int
}

// Extractor converts a file into page-marked text.
type Extractor interface {
	Extract(path string) (text string, stats Stats, err error)
}

// Kind classifies a capture file by extension.
type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindPDF
	KindAudio
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".webm": true,
}

var textExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// KindForPath classifies a path by its extension.
func KindForPath(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return KindPDF
	case textExtensions[ext]:
		return KindText
	case audioExtensions[ext]:
		return KindAudio
	default:
		return KindUnknown
	}
}

// ForPath returns an extractor for the given file, or an error for
// formats that have none (audio goes through transcription instead).
func ForPath(path string) (Extractor, error) {
	switch KindForPath(path) {
	case KindText:
		return &TextExtractor{}, nil
	case KindPDF:
		return &PDFExtractor{}, nil
	case KindAudio:
		return nil, fmt.Errorf("%s is an audio file: use transcription, not document extraction", path)
	default:
		return nil, fmt.Errorf("unsupported document format: %s", filepath.Ext(path))
	}
}

// markPages joins page texts with "[Page N]" markers, numbering from 1.
func markPages(pages []string) string {
	var b strings.Builder
	for i, page := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Page %d]\n%s", i+1, strings.TrimSpace(page))
	}
	return b.String()
}

// countTables counts markdown-style table headers (a line of pipes
// followed by a separator row) in flattened text.
func countTables(text string) int {
	lines := strings.Split(text, "\n")
	count := 0
	for i := 0; i+1 < len(lines); i++ {
		if !strings.HasPrefix(strings.TrimSpace(lines[i]), "|") {
			continue
		}
		next := strings.TrimSpace(lines[i+1])
		if strings.HasPrefix(next, "|") && strings.Contains(next, "---") {
			count++
		}
	}
	return count
}
