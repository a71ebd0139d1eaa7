// Package extractor normalizes uploaded or pasted messages (eml, msg, html
// or plain text) into a core.NormalizedMessage.
package extractor

import (
	"bytes"
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/core"
	"github.com/mikey/mailtrust/internal/utils"
)

var (
	// ErrEmptyInput is returned when there is no content to inspect
	ErrEmptyInput = errors.New("no message content supplied")

	// ErrCorruptArchive is returned when an Outlook .msg container cannot be read
	ErrCorruptArchive = errors.New("could not read Outlook .msg file, try exporting the message as .eml")
)

// oleMagic is the signature of OLE2 compound files such as Outlook .msg
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

var headerLine = regexp.MustCompile(`^[!-9;-~]+:`)

// sniffLimit bounds how much of a payload is examined for a header block
const sniffLimit = 64 * 1024

// Extractor implements core.ContentExtractor
type Extractor struct {
	text   *utils.TextProcessor
	logger *zap.Logger
}

// NewExtractor creates a new content extractor
func NewExtractor(text *utils.TextProcessor, logger *zap.Logger) *Extractor {
	return &Extractor{
		text:   text,
		logger: logger,
	}
}

// DetectKind picks the parse path for a payload: extension first, then the
// binary signature, then content sniffing
func DetectKind(filename string, data []byte) core.MessageKind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".eml":
		return core.KindEML
	case ".msg":
		return core.KindMSG
	case ".html", ".htm":
		return core.KindHTML
	case ".txt":
		return core.KindText
	}

	if bytes.HasPrefix(data, oleMagic) {
		return core.KindMSG
	}
	if looksLikeHTML(data) {
		return core.KindHTML
	}
	if hasHeaderBlock(data) {
		return core.KindEML
	}
	return core.KindText
}

// Extract normalizes data. Only an unreadable .msg container or an empty
// payload produce an error.
func (e *Extractor) Extract(filename string, data []byte) (*core.NormalizedMessage, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyInput
	}

	kind := DetectKind(filename, data)
	e.logger.Debug("Extracting message",
		zap.String("filename", filename),
		zap.String("kind", string(kind)),
		zap.Int("size", len(data)))

	var (
		msg *core.NormalizedMessage
		err error
	)
	switch kind {
	case core.KindMSG:
		msg, err = e.parseMSG(data)
		if err != nil {
			e.logger.Warn("Rejected unreadable .msg file", zap.String("filename", filename), zap.Error(err))
			return nil, err
		}
	case core.KindEML:
		msg, err = e.parseEML(data)
		if err != nil {
			e.logger.Info("Falling back from eml parsing", zap.String("filename", filename), zap.Error(err))
			msg = e.fallback(data)
		}
	case core.KindHTML:
		msg = e.parseHTML(data)
	default:
		msg = e.parseText(data)
	}

	msg.Subject = e.text.HeaderValue(msg.Subject, 998)
	msg.From = strings.TrimSpace(e.text.Sanitize(msg.From))
	msg.BodyText = e.text.Sanitize(msg.BodyText)
	msg.BodyHTML = e.text.Sanitize(msg.BodyHTML)

	return msg, nil
}

func (e *Extractor) fallback(data []byte) *core.NormalizedMessage {
	if looksLikeHTML(data) {
		return e.parseHTML(data)
	}
	return e.parseText(data)
}

func (e *Extractor) parseHTML(data []byte) *core.NormalizedMessage {
	html := string(data)
	return &core.NormalizedMessage{
		Kind:     core.KindHTML,
		BodyHTML: html,
		BodyText: HTMLText(html),
		Auth:     core.NotApplicableAuth(),
	}
}

func (e *Extractor) parseText(data []byte) *core.NormalizedMessage {
	return &core.NormalizedMessage{
		Kind:     core.KindText,
		BodyText: string(data),
		Auth:     core.NotApplicableAuth(),
	}
}

// HTMLText returns the visible text of an HTML document on a single line
func HTMLText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, head").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func looksLikeHTML(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n\ufeff"), []byte("<"))
}

// hasHeaderBlock reports whether data starts with RFC 5322 style header
// lines that include a From header
func hasHeaderBlock(data []byte) bool {
	if len(data) > sniffLimit {
		data = data[:sniffLimit]
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")

	from := false
	headers := 0
	for _, line := range lines {
		if line == "" {
			break
		}
		if line[0] == ' ' || line[0] == '\t' {
			if headers == 0 {
				return false
			}
			continue
		}
		if !headerLine.MatchString(line) {
			return false
		}
		headers++
		if strings.HasPrefix(strings.ToLower(line), "from:") {
			from = true
		}
	}
	return from
}
