// Package sanitize defends the prompt pipeline against injection attempts
// embedded in user-supplied study material and extracted file text. It is a
// secondary control behind the delimited prompt structure in internal/ai;
// stripped input must still be treated as untrusted.
package sanitize

import (
	"regexp"
	"strings"

	"quizai/internal/logger"
)

// DefaultMaxLength caps study material before it reaches a prompt.
const DefaultMaxLength = 50000

const (
	ReasonLengthExceeded    = "length_exceeded"
	ReasonEscapeSequence    = "escape_sequence"
	ReasonExcessiveNewlines = "excessive_newlines"
)

// injectionPatterns match common role-hijack and output-steering phrasing.
// Matching is case-insensitive. The list errs toward recall; a false positive
// only rewrites a bracketed token, it never drops content.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+|the\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+|the\s+)?(previous|prior|above)`),
	regexp.MustCompile(`(?i)forget\s+(all\s+|the\s+)?(previous|prior|above)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+a`),
	regexp.MustCompile(`(?i)\bact\s+as\s+(a|an)\s`),
	regexp.MustCompile(`(?i)pretend\s+(to\s+be|you\s+are)`),
	regexp.MustCompile(`(?i)your\s+new\s+role\s+is`),
	regexp.MustCompile(`(?i)switch\s+mode`),
	regexp.MustCompile(`(?i)\[\s*(system|instruction|admin)\s*\]`),
	regexp.MustCompile(`(?i)<\s*/?\s*(system|instruction)\s*>`),
	regexp.MustCompile("```system"),
	regexp.MustCompile(`(?i)\boutput\s+only\b`),
	regexp.MustCompile(`(?i)\brespond\s+with\s+only\b`),
	regexp.MustCompile(`(?i)\breturn\s+only\s+the\b`),
	regexp.MustCompile(`(?i)\b(return|output)\s+this\s+exact\s+json\b`),
}

var (
	bracketTokenRe  = regexp.MustCompile(`(?i)\[\s*(system|instruction|admin)\s*\]`)
	angleTokenRe    = regexp.MustCompile(`(?i)<\s*/?\s*(system|instruction)\s*>`)
	fencedSystemRe  = regexp.MustCompile("```system")
	runNewlinesRe   = regexp.MustCompile(`\n{4,}`)
	escapedNewlines = regexp.MustCompile(`(\\n){2,}`)
)

// escapeRunes are stripped outright: NUL, ESC, zero-width characters and
// bidirectional override controls used to hide instructions from reviewers.
var escapeRunes = map[rune]bool{
	0x0000: true, 0x001b: true,
	0x200b: true, 0x200c: true, 0x200d: true, 0x2060: true, 0xfeff: true,
	0x202a: true, 0x202b: true, 0x202c: true, 0x202d: true, 0x202e: true,
	0x2066: true, 0x2067: true, 0x2068: true, 0x2069: true,
}

// Result is the outcome of one sanitization pass. Patterns lists what was
// found or altered; entries are reason codes or "injection:<prefix>" with the
// first characters of the matched text.
type Result struct {
	Text     string
	Modified bool
	Patterns []string
}

type Sanitizer struct {
	log *logger.Logger
}

func New(log *logger.Logger) *Sanitizer {
	return &Sanitizer{log: log}
}

// Clean normalizes untrusted text before it may be embedded in a prompt.
// Order matters: truncate, strip escapes, detect and defang injection
// phrasing, collapse newline runs. Cleaning already-clean text is a no-op.
func (s *Sanitizer) Clean(text string, maxLength int) Result {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	res := Result{Text: text}

	if runes := []rune(res.Text); len(runes) > maxLength {
		res.Text = string(runes[:maxLength])
		res.Modified = true
		res.Patterns = append(res.Patterns, ReasonLengthExceeded)
	}

	if cleaned := stripEscapes(res.Text); cleaned != res.Text {
		res.Text = cleaned
		res.Modified = true
		res.Patterns = append(res.Patterns, ReasonEscapeSequence)
	}

	var matched bool
	for _, re := range injectionPatterns {
		if m := re.FindString(res.Text); m != "" {
			matched = true
			res.Patterns = append(res.Patterns, "injection:"+prefix(m, 30))
		}
	}
	if matched {
		rewritten := bracketTokenRe.ReplaceAllString(res.Text, "[blocked]")
		rewritten = angleTokenRe.ReplaceAllString(rewritten, "[blocked]")
		rewritten = fencedSystemRe.ReplaceAllString(rewritten, "```blocked")
		if rewritten != res.Text {
			res.Text = rewritten
			res.Modified = true
		}
	}

	if collapsed := runNewlinesRe.ReplaceAllString(res.Text, "\n\n\n"); collapsed != res.Text {
		res.Text = collapsed
		res.Modified = true
		res.Patterns = append(res.Patterns, ReasonExcessiveNewlines)
	}

	if res.Modified && s.log != nil {
		s.log.Security(logger.EventInputSanitized,
			"patternCount", len(res.Patterns),
			"patterns", res.Patterns,
			"inputLength", len(text),
			"outputLength", len(res.Text),
		)
	}
	return res
}

func stripEscapes(text string) string {
	// Literal "\n\n" escape text (backslash-n twice) is a common trick to
	// fake message boundaries once the model unescapes it.
	text = escapedNewlines.ReplaceAllString(text, "\n")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case escapeRunes[r]:
			// dropped
		case r == 0x2028 || r == 0x2029:
			b.WriteRune('\n')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// SanitizeFileName strips path separators and bounds length so a hostile
// filename cannot inject structure into concatenated text or logs.
func SanitizeFileName(name string) string {
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	if runes := []rune(name); len(runes) > 100 {
		return string(runes[:100]) + "..."
	}
	return name
}
