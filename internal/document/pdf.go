package document

import (
	"fmt"
	"os/exec"
	"strings"

	"sift/internal/logging"
)

// PDFExtractor shells out to pdftotext (poppler-utils). Each form feed
// in its output marks a page boundary. Tables arrive already flattened
// into the text stream by -layout.
type PDFExtractor struct{}

// Extract runs pdftotext and returns page-marked text.
func (e *PDFExtractor) Extract(path string) (string, Stats, error) {
	bin, err := exec.LookPath("pdftotext")
	if err != nil {
		return "", Stats{}, fmt.Errorf("pdftotext not found: install poppler-utils to import PDF documents")
	}

	out, err := exec.Command(bin, "-layout", path, "-").Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", Stats{}, fmt.Errorf("pdftotext failed for %s: %s", path, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", Stats{}, fmt.Errorf("pdftotext failed for %s: %w", path, err)
	}

	content := string(out)
	pages := strings.Split(strings.TrimRight(content, "\f\n"), "\f")

	text := markPages(pages)
	stats := Stats{
		PageCount:  len(pages),
		TableCount: countTables(content),
		CharCount:  len(content),
	}

	logging.StoreDebug("extracted PDF %s: %d pages, %d chars", path, stats.PageCount, stats.CharCount)
	return text, stats, nil
}
