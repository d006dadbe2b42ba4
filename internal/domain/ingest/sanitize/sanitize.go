// Package sanitize implements the ingestion pipeline's "Iron Lung" stage: a
// pure, stateless text-cleaning function with no I/O beyond its injected
// logger. It never throws; malformed input degrades gracefully to an empty
// or best-effort-cleaned string.
package sanitize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
)

// chunkWindowBytes bounds peak memory for very large inputs (spec §4.A.6).
const chunkWindowBytes = 1 << 20 // 1 MB

// chunkThresholdBytes is the input size above which the chunked variant runs.
const chunkThresholdBytes = 2 << 20 // 2 MB

// sampleWindowBytes is the size of each encoding-detection sample window.
const sampleWindowBytes = 1024

var (
	// isoTimestampLine matches a bracketed ISO timestamp at the start of a
	// line, e.g. "[2024-01-02T15:04:05] ".
	isoTimestampLine = regexp.MustCompile(`(?m)^\[\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?Z?\]\s*`)

	// progressBar matches transient progress-bar fragments like "[====] 100%".
	progressBar = regexp.MustCompile(`\[[=\-#\s]*\]\s*\d{1,3}%`)

	// transientFragment matches "Processing '…'" style noise lines.
	transientFragment = regexp.MustCompile(`(?im)^(?:Processing|Loading|Indexing|Analyzing)\s+['"][^'"]*['"]\.*\s*$`)

	emailPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	ipv4Pattern     = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`)
	apiKeyPattern   = regexp.MustCompile(`sk-[A-Za-z0-9]{32,}`)
	codeFencePattern = regexp.MustCompile("(?s)```.*?```")
	roleMarkerPattern = regexp.MustCompile(`<\|(?:user|assistant|system)\|>`)
	sourceTagPattern  = regexp.MustCompile(`\[Source:[^\]]*\]`)

	// jsonLogKeys are field names whose presence signals a log-wrapped JSON
	// payload worth structured extraction rather than pure regex stripping.
	jsonLogKeys = []string{`"response_content":`, `"thinking_content":`, `"content":`, `"message":`}

	runOfNewlines = regexp.MustCompile(`\n{3,}`)
)

// Sanitizer runs the six-step cleaning pipeline described in spec §4.A. It
// carries only a logger; all cleaning state is local to each Sanitize call.
type Sanitizer struct {
	logger logging.Logger
}

// New constructs a Sanitizer that logs encoding-detection decisions through
// the given Logger.
func New(logger logging.Logger) *Sanitizer {
	return &Sanitizer{logger: logger}
}

// Sanitize runs the full pipeline over raw input and returns normalized,
// PII-masked, noise-free UTF-8 text. Never panics; empty input yields an
// empty string.
func (s *Sanitizer) Sanitize(raw []byte, path string) string {
	if len(raw) == 0 {
		return ""
	}

	text := s.resolveEncoding(raw, path)
	text = normalizeNewlines(text)
	text = stripLogSpam(text)
	text = maskPII(text)
	text = stripJSONWrapper(text)

	if len(raw) > chunkThresholdBytes {
		return s.sanitizeChunked(raw, path)
	}

	return text
}

// resolveEncoding implements step 1: BOM detection, UTF-16 heuristic via
// null-byte density, and replacement-character/NUL scrubbing.
func (s *Sanitizer) resolveEncoding(raw []byte, path string) string {
	switch {
	case len(raw) >= 2 && raw[0] == 0xFF && raw[1] == 0xFE:
		s.logger.Debug("detected UTF-16LE BOM", logging.String("path", path))
		return decodeUTF16(raw[2:], false)
	case len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF:
		s.logger.Debug("detected UTF-16BE BOM", logging.String("path", path))
		return decodeUTF16(raw[2:], true)
	case len(raw) >= 3 && raw[0] == 0xEF && raw[1] == 0xBB && raw[2] == 0xBF:
		return scrubRunes(string(raw[3:]))
	}

	if looksLikeUTF16LE(raw) {
		s.logger.Debug("auto-detected UTF-16LE without BOM", logging.String("path", path))
		return decodeUTF16(raw, false)
	}

	return scrubRunes(string(raw))
}

// looksLikeUTF16LE samples the first and middle 1 KB windows and reports
// true when null-byte density exceeds 20%, the spec's UTF-16LE heuristic.
func looksLikeUTF16LE(raw []byte) bool {
	sample := sampleBytes(raw)
	if len(sample) == 0 {
		return false
	}
	var nulls int
	for _, b := range sample {
		if b == 0 {
			nulls++
		}
	}
	return float64(nulls)/float64(len(sample)) > 0.20
}

func sampleBytes(raw []byte) []byte {
	var sample []byte
	first := sampleWindowBytes
	if first > len(raw) {
		first = len(raw)
	}
	sample = append(sample, raw[:first]...)

	mid := len(raw) / 2
	midEnd := mid + sampleWindowBytes
	if midEnd > len(raw) {
		midEnd = len(raw)
	}
	if mid < midEnd {
		sample = append(sample, raw[mid:midEnd]...)
	}
	return sample
}

func decodeUTF16(raw []byte, bigEndian bool) string {
	if len(raw)%2 != 0 {
		raw = raw[:len(raw)-1]
	}
	units := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		if bigEndian {
			units = append(units, uint16(raw[i])<<8|uint16(raw[i+1]))
		} else {
			units = append(units, uint16(raw[i+1])<<8|uint16(raw[i]))
		}
	}
	runes := utf16.Decode(units)
	return scrubRunes(string(runes))
}

// scrubRunes replaces NUL and the Unicode replacement character, and drops
// invalid UTF-8 byte sequences.
func scrubRunes(s string) string {
	if utf8.ValidString(s) {
		return strings.NewReplacer("\x00", "", "�", "").Replace(s)
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r == 0 || r == utf8.RuneError {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// normalizeNewlines implements step 2.
func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\\r\\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return runOfNewlines.ReplaceAllString(text, "\n\n")
}

// stripLogSpam implements step 3.
func stripLogSpam(text string) string {
	text = isoTimestampLine.ReplaceAllString(text, "")
	text = progressBar.ReplaceAllString(text, "")
	text = transientFragment.ReplaceAllString(text, "")
	return text
}

// maskPII implements step 4.
func maskPII(text string) string {
	text = emailPattern.ReplaceAllString(text, "[EMAIL_REDACTED]")
	text = ipv4Pattern.ReplaceAllString(text, "[IP_REDACTED]")
	text = apiKeyPattern.ReplaceAllString(text, "sk-[REDACTED]")
	return text
}

// stripJSONWrapper implements step 5. Code fences are protected from
// wrapper-stripping via placeholder substitution and restored afterward.
func stripJSONWrapper(text string) string {
	fences := codeFencePattern.FindAllString(text, -1)
	protected := text
	for i, fence := range fences {
		protected = strings.Replace(protected, fence, fencePlaceholder(i), 1)
	}

	if looksLikeJSONLog(protected) {
		protected = extractContentFields(protected)
	}
	protected = roleMarkerPattern.ReplaceAllString(protected, "")
	protected = sourceTagPattern.ReplaceAllString(protected, "")

	for i, fence := range fences {
		protected = strings.Replace(protected, fencePlaceholder(i), fence, 1)
	}
	return protected
}

func fencePlaceholder(i int) string {
	return "\x00FENCE" + strconv.Itoa(i) + "\x00"
}

func looksLikeJSONLog(text string) bool {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return true
	}
	for _, key := range jsonLogKeys {
		if strings.Contains(text, key) {
			return true
		}
	}
	return false
}

// contentFieldPattern extracts the value of a "content"/"message"-style JSON
// field without a full JSON parse, since the wrapper may be log-concatenated
// JSON rather than a single valid document.
var contentFieldPattern = regexp.MustCompile(`"(?:response_content|thinking_content|content|message)"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// extractContentFields pulls content-bearing field values out of a
// JSON/log-JSON blob. Falls back to the original text if no field matches.
func extractContentFields(text string) string {
	matches := contentFieldPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return text
	}
	var sb strings.Builder
	for _, m := range matches {
		unescaped := strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`, `\\`, `\`).Replace(m[1])
		sb.WriteString(unescaped)
		sb.WriteString("\n")
	}
	return sb.String()
}

// sanitizeChunked implements step 6: for inputs over chunkThresholdBytes, the
// pipeline runs over 1 MB windows aligned to the nearest preceding newline so
// peak memory stays bounded regardless of input size.
func (s *Sanitizer) sanitizeChunked(raw []byte, path string) string {
	var sb strings.Builder
	offset := 0
	for offset < len(raw) {
		end := offset + chunkWindowBytes
		if end > len(raw) {
			end = len(raw)
		} else {
			if nl := lastNewlineBefore(raw, end); nl > offset {
				end = nl + 1
			}
		}

		window := s.resolveEncoding(raw[offset:end], path)
		window = normalizeNewlines(window)
		window = stripLogSpam(window)
		window = maskPII(window)
		window = stripJSONWrapper(window)
		sb.WriteString(window)

		offset = end
	}
	return sb.String()
}

func lastNewlineBefore(raw []byte, end int) int {
	for i := end - 1; i >= 0; i-- {
		if raw[i] == '\n' {
			return i
		}
	}
	return -1
}
