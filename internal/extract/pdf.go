package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxPDFPages caps extraction work per document. Beyond this the file is
// almost certainly not study notes.
const maxPDFPages = 500

func extractPDF(data []byte) (text string, err error) {
	// The parser panics on some malformed files instead of returning an
	// error; treat that as an unreadable document.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("could not read PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("could not read PDF: %w", err)
	}

	pages := reader.NumPage()
	if pages > maxPDFPages {
		return "", fmt.Errorf("PDF has %d pages, maximum is %d", pages, maxPDFPages)
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}

	text = strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("no text found in PDF, it may be scanned or image-based")
	}
	return text, nil
}
