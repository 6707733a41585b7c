package document

import (
	"fmt"
	"os"
	"strings"

	"sift/internal/logging"
)

// TextExtractor reads plain text and markdown files. Form feeds are
// treated as page breaks; a file without them is a single page.
type TextExtractor struct{}

// Extract reads the file and returns page-marked text.
func (e *TextExtractor) Extract(path string) (string, Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", Stats{}, fmt.Errorf("failed to read document %s: %w", path, err)
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	pages := strings.Split(content, "\f")

	text := markPages(pages)
	stats := Stats{
		PageCount:  len(pages),
		TableCount: countTables(content),
		CharCount:  len(content),
	}

	logging.StoreDebug("extracted text document %s: %d pages, %d chars", path, stats.PageCount, stats.CharCount)
	return text, stats, nil
}
