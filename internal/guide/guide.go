// Package guide renders the bundled user guide PDF as plain text so
// the CLI can show it without a PDF viewer.
package guide

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText returns the plain text of the PDF at path.
func ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening guide %s: %w", path, err)
	}
	defer f.Close()

	tr, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting guide text: %w", err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, tr); err != nil {
		return "", fmt.Errorf("reading guide text: %w", err)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("guide %s contains no extractable text", path)
	}
	return text, nil
}
