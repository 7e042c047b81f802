package extract

import (
	"bytes"
	"fmt"
	"strings"

	"quizai/internal/logger"
)

const (
	MIMEPdf      = "application/pdf"
	MIMEDocx     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEText     = "text/plain"
	MIMEMarkdown = "text/markdown"
	MIMEPng      = "image/png"
	MIMEJpeg     = "image/jpeg"
)

// Limits bound a single upload batch.
const (
	MaxFiles          = 5
	MaxFileSizeBytes  = 10 << 20
	MaxTotalSizeBytes = 20 << 20
	MaxImageFiles     = 3
)

// AcceptedExtensions is the user-facing allow-list string.
const AcceptedExtensions = ".pdf,.docx,.txt,.md,.png,.jpg,.jpeg"

var allowedMIMEs = map[string]bool{
	MIMEPdf: true, MIMEDocx: true, MIMEText: true,
	MIMEMarkdown: true, MIMEPng: true, MIMEJpeg: true,
}

// magicBytes maps a claimed MIME type to accepted content signatures.
// Client-supplied MIME types and extensions are trivially spoofable; the
// signature check is what actually gates content.
var magicBytes = map[string][][]byte{
	MIMEPdf:  {{0x25, 0x50, 0x44, 0x46}}, // %PDF
	MIMEDocx: {{0x50, 0x4b, 0x03, 0x04}}, // PK zip header
	MIMEPng:  {{0x89, 0x50, 0x4e, 0x47}},
	MIMEJpeg: {{0xff, 0xd8, 0xff}},
}

// File is one uploaded file, fully read into memory. Batch size limits keep
// the worst case at MaxTotalSizeBytes.
type File struct {
	Name string
	MIME string
	Data []byte
}

func (f File) Size() int64 { return int64(len(f.Data)) }

// IsImageMIME reports whether the type routes to vision extraction.
func IsImageMIME(mime string) bool {
	return mime == MIMEPng || mime == MIMEJpeg
}

// MIMEForName maps a file extension to its canonical MIME type. Browsers and
// multipart clients often send application/octet-stream, so callers fall back
// to this before validation. Returns "" for unknown extensions.
func MIMEForName(name string) string {
	switch extensionOf(name) {
	case "pdf":
		return MIMEPdf
	case "docx":
		return MIMEDocx
	case "txt":
		return MIMEText
	case "md":
		return MIMEMarkdown
	case "png":
		return MIMEPng
	case "jpg", "jpeg":
		return MIMEJpeg
	default:
		return ""
	}
}

func extensionOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// ValidateFile checks one file: extension, MIME type, size, magic bytes and,
// for DOCX, embedded macro and OLE content. The returned error message is
// safe to show to the user.
func (e *Extractor) ValidateFile(f File) error {
	ext := extensionOf(f.Name)
	allowed := false
	for _, a := range strings.Split(AcceptedExtensions, ",") {
		if ext == strings.TrimPrefix(a, ".") {
			allowed = true
			break
		}
	}
	if !allowed {
		e.rejectFile(f.Name, "unsupported extension")
		return fmt.Errorf("unsupported file type: .%s, accepted: %s", ext, AcceptedExtensions)
	}

	if !allowedMIMEs[f.MIME] {
		e.rejectFile(f.Name, "unsupported MIME type")
		return fmt.Errorf("unsupported file type: %s", f.MIME)
	}

	if f.Size() > MaxFileSizeBytes {
		e.rejectFile(f.Name, "file too large")
		return fmt.Errorf("%q exceeds %d MB limit", f.Name, MaxFileSizeBytes/(1<<20))
	}

	if !verifyMagicBytes(f.Data, f.MIME) {
		e.rejectFile(f.Name, "magic byte mismatch")
		return fmt.Errorf("%q content does not match its file type", f.Name)
	}

	if f.MIME == MIMEDocx {
		if err := validateDocxStructure(f.Data); err != nil {
			e.rejectFile(f.Name, err.Error())
			return fmt.Errorf("%q %s", f.Name, err.Error())
		}
	}
	return nil
}

func verifyMagicBytes(data []byte, mime string) bool {
	if mime == MIMEText || mime == MIMEMarkdown {
		// Text has no signature; reject binary content masquerading as text.
		limit := len(data)
		if limit > 8192 {
			limit = 8192
		}
		return !bytes.ContainsRune(data[:limit], 0x00)
	}

	sigs, ok := magicBytes[mime]
	if !ok || len(data) < 4 {
		return false
	}
	for _, sig := range sigs {
		if bytes.HasPrefix(data, sig) {
			return true
		}
	}
	return false
}

// validateDocxStructure scans the raw archive bytes for entry names that
// indicate VBA macros or embedded OLE objects. Scanning raw bytes instead of
// parsed zip entries also catches names hidden from the central directory.
func validateDocxStructure(data []byte) error {
	if bytes.Contains(data, []byte("vbaProject.bin")) || bytes.Contains(data, []byte("vbaData.xml")) {
		return fmt.Errorf("contains macros and cannot be processed")
	}
	if bytes.Contains(data, []byte("oleObject")) && bytes.Contains(data, []byte(".bin")) {
		return fmt.Errorf("contains embedded objects and cannot be processed")
	}
	return nil
}

// ValidateBatch checks batch-level limits before any per-file work starts.
func (e *Extractor) ValidateBatch(files []File) error {
	if len(files) == 0 {
		return fmt.Errorf("no files provided")
	}
	if len(files) > MaxFiles {
		e.rejectBatch(fmt.Sprintf("too many files: %d", len(files)))
		return fmt.Errorf("maximum %d files allowed, got %d", MaxFiles, len(files))
	}

	var total int64
	for _, f := range files {
		total += f.Size()
	}
	if total > MaxTotalSizeBytes {
		e.rejectBatch(fmt.Sprintf("total size %d bytes", total))
		return fmt.Errorf("total upload size exceeds %d MB", MaxTotalSizeBytes/(1<<20))
	}

	images := 0
	for _, f := range files {
		if IsImageMIME(f.MIME) {
			images++
		}
	}
	if images > MaxImageFiles {
		e.rejectBatch(fmt.Sprintf("too many image files: %d", images))
		return fmt.Errorf("maximum %d image files allowed, got %d", MaxImageFiles, images)
	}
	return nil
}

func (e *Extractor) rejectFile(fileName, reason string) {
	if e.log != nil {
		e.log.Security(logger.EventFileRejected, "fileName", fileName, "reason", reason)
	}
}

func (e *Extractor) rejectBatch(reason string) {
	if e.log != nil {
		e.log.Security(logger.EventFileRejected, "reason", reason)
	}
}
