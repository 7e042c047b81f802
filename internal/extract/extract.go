// Package extract turns uploaded files into sanitized plain text ready for
// prompt assembly. PDF, DOCX and plain text are handled locally; images go
// through a vision-capable AI provider.
package extract

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"quizai/internal/logger"
	"quizai/internal/sanitize"
)

const (
	// localTimeout bounds CPU-bound extraction of a single file.
	localTimeout = 15 * time.Second
	// imageTimeout bounds one vision API round trip.
	imageTimeout = 30 * time.Second
	// MaxCombinedTextLength matches the sanitizer cap for study material.
	MaxCombinedTextLength = 50000

	// localParallelism bounds concurrent local extractions per batch.
	localParallelism = 4
)

type Failure struct {
	FileName string `json:"fileName"`
	Reason   string `json:"reason"`
}

// Result is the outcome of a batch extraction. SuccessCount plus
// FailureCount always equals the number of submitted files.
type Result struct {
	Text            string    `json:"-"`
	SuccessCount    int       `json:"successCount"`
	FailureCount    int       `json:"failureCount"`
	Failures        []Failure `json:"failures,omitempty"`
	TotalCharacters int       `json:"totalCharacters"`
}

type Extractor struct {
	log    *logger.Logger
	san    *sanitize.Sanitizer
	vision VisionExtractor
}

// New builds an extractor. vision may be nil, in which case image files fail
// extraction with a clear reason instead of an opaque error.
func New(log *logger.Logger, san *sanitize.Sanitizer, vision VisionExtractor) *Extractor {
	return &Extractor{log: log, san: san, vision: vision}
}

type segment struct {
	text    string
	failure *Failure
}

// ExtractBatch processes every file and never aborts on individual failures.
// Local formats run in parallel; images run sequentially afterwards because
// each one costs a vision API call. Output segments keep the order in which
// files were submitted, regardless of which finished first.
func (e *Extractor) ExtractBatch(ctx context.Context, files []File) Result {
	var totalSize int64
	for _, f := range files {
		totalSize += f.Size()
	}
	e.log.Security(logger.EventUploadStarted,
		"fileCount", len(files),
		"totalSize", totalSize,
	)

	slots := make([]segment, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(localParallelism)
	for i, f := range files {
		if IsImageMIME(f.MIME) {
			continue
		}
		i, f := i, f
		g.Go(func() error {
			slots[i] = e.processFile(gctx, f)
			return nil
		})
	}
	// Workers never return errors; failures land in their slots.
	_ = g.Wait()

	for i, f := range files {
		if !IsImageMIME(f.MIME) {
			continue
		}
		slots[i] = e.processFile(ctx, f)
	}

	res := Result{}
	combined := ""
	for _, s := range slots {
		if s.failure != nil {
			res.Failures = append(res.Failures, *s.failure)
			continue
		}
		res.SuccessCount++
		if combined != "" {
			combined += "\n\n"
		}
		combined += s.text
	}
	res.FailureCount = len(res.Failures)

	if runes := []rune(combined); len(runes) > MaxCombinedTextLength {
		combined = string(runes[:MaxCombinedTextLength])
	}
	res.Text = combined
	res.TotalCharacters = len([]rune(combined))

	e.log.Security(logger.EventExtractionComplete,
		"successCount", res.SuccessCount,
		"failureCount", res.FailureCount,
		"totalCharacters", res.TotalCharacters,
	)
	return res
}

// processFile validates, extracts and sanitizes one file. The sanitizer runs
// per file, before concatenation, so injection text in one upload cannot
// piggyback on a clean neighbor.
func (e *Extractor) processFile(ctx context.Context, f File) segment {
	fail := func(reason string) segment {
		e.log.Security(logger.EventExtractionFailed, "fileName", f.Name, "reason", reason)
		return segment{failure: &Failure{FileName: f.Name, Reason: reason}}
	}

	if err := e.ValidateFile(f); err != nil {
		return segment{failure: &Failure{FileName: f.Name, Reason: err.Error()}}
	}

	timeout := localTimeout
	if IsImageMIME(f.MIME) {
		timeout = imageTimeout
	}

	raw, err := e.runWithTimeout(ctx, timeout, f)
	if err != nil {
		return fail(err.Error())
	}

	cleaned := e.san.Clean(raw, MaxCombinedTextLength)
	name := sanitize.SanitizeFileName(f.Name)
	return segment{text: fmt.Sprintf("--- %s ---\n\n%s", name, cleaned.Text)}
}

// runWithTimeout races the strategy against the deadline. The PDF and DOCX
// paths are not context-aware, so a stuck parse keeps its goroutine until it
// finishes, but the caller moves on.
func (e *Extractor) runWithTimeout(ctx context.Context, timeout time.Duration, f File) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		text, err := e.extractOne(ctx, f)
		ch <- outcome{text, err}
	}()

	select {
	case o := <-ch:
		return o.text, o.err
	case <-ctx.Done():
		return "", fmt.Errorf("%q extraction timed out after %ds", f.Name, int(timeout.Seconds()))
	}
}

func (e *Extractor) extractOne(ctx context.Context, f File) (string, error) {
	switch f.MIME {
	case MIMEPdf:
		return extractPDF(f.Data)
	case MIMEDocx:
		return extractDOCX(f.Data)
	case MIMEText, MIMEMarkdown:
		return extractText(f.Data)
	case MIMEPng, MIMEJpeg:
		return e.extractImage(ctx, f)
	default:
		return "", fmt.Errorf("unsupported file type: %s", f.MIME)
	}
}
