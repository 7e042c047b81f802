package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	residualTagRe = regexp.MustCompile(`<[^>]*>`)
	dataURIRe     = regexp.MustCompile(`data:[^;]+;base64,[A-Za-z0-9+/=]+`)
)

// extractDOCX reads word/document.xml out of the archive and collects the
// text runs (<w:t> elements).
func extractDOCX(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("could not open DOCX archive: %w", err)
	}

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("DOCX is missing word/document.xml")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("could not read document body: %w", err)
	}
	defer rc.Close()

	var sb strings.Builder
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("could not parse document body: %w", err)
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "t": // <w:t> text run
				var text string
				if err := decoder.DecodeElement(&text, &se); err == nil {
					sb.WriteString(text)
				}
			case "p", "br": // paragraph and line breaks
				sb.WriteString("\n")
			}
		}
	}

	text := residualTagRe.ReplaceAllString(sb.String(), "")
	text = dataURIRe.ReplaceAllString(text, "[removed]")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("no text found in DOCX")
	}
	return text, nil
}
