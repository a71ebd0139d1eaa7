package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// TextProcessor cleans up text extracted from messages before it is scored or displayed
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// Preview cuts text down to maxSize bytes on a rune boundary, marking the cut
func (tp *TextProcessor) Preview(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + "..."
}

// Sanitize drops invalid UTF-8 sequences and NUL bytes and normalizes line endings
func (tp *TextProcessor) Sanitize(text string) string {
	if text == "" {
		return text
	}

	clean := text
	if !utf8.ValidString(clean) {
		clean = strings.ToValidUTF8(clean, "")
		tp.logger.Debug("Text sanitized",
			zap.Int("original_size", len(text)),
			zap.Int("sanitized_size", len(clean)))
	}
	clean = strings.ReplaceAll(clean, "\x00", "")
	clean = strings.ReplaceAll(clean, "\r\n", "\n")

	return clean
}

// HeaderValue collapses text onto a single line so it can be used as a header value
func (tp *TextProcessor) HeaderValue(text string, maxSize int) string {
	oneLine := strings.Join(strings.Fields(tp.Sanitize(text)), " ")
	return tp.Preview(oneLine, maxSize)
}
