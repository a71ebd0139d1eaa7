package extractor

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/richardlehane/mscfb"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/mikey/mailtrust/internal/core"
)

// MAPI property streams of an Outlook message. The suffix is the property
// type: 001F is UTF-16LE, 001E is 8-bit, 0102 is binary.
const (
	propSubject          = "__substg1.0_0037"
	propSenderSMTP       = "__substg1.0_5D01"
	propSentRepresenting = "__substg1.0_0065"
	propSenderEmail      = "__substg1.0_0C1F"
	propBody             = "__substg1.0_1000"
	propBodyHTML         = "__substg1.0_1013"
)

func (e *Extractor) parseMSG(data []byte) (*core.NormalizedMessage, error) {
	streams, err := readTopLevelStreams(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	msg := &core.NormalizedMessage{
		Kind:     core.KindMSG,
		Subject:  stringProp(streams, propSubject),
		BodyText: stringProp(streams, propBody),
		BodyHTML: stringProp(streams, propBodyHTML),
		Auth:     core.NotApplicableAuth(),
	}
	for _, prop := range []string{propSenderSMTP, propSentRepresenting, propSenderEmail} {
		if addr := stringProp(streams, prop); strings.Contains(addr, "@") {
			msg.From = addr
			break
		}
	}
	if msg.BodyText == "" && msg.BodyHTML != "" {
		msg.BodyText = HTMLText(msg.BodyHTML)
	}

	if msg.Subject == "" && msg.BodyText == "" && msg.BodyHTML == "" && msg.From == "" {
		return nil, fmt.Errorf("%w: no message properties found", ErrCorruptArchive)
	}

	e.logger.Debug("Parsed Outlook message",
		zap.Int("streams", len(streams)),
		zap.Bool("has_html", msg.BodyHTML != ""))

	return msg, nil
}

// readTopLevelStreams returns the streams stored directly under the root
// storage. Attachments and recipients live in sub-storages and are skipped.
func readTopLevelStreams(data []byte) (map[string][]byte, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	streams := make(map[string][]byte)
	for entry, err := doc.Next(); err != io.EOF; entry, err = doc.Next() {
		if err != nil {
			return nil, err
		}
		if len(entry.Path) > 0 || !strings.HasPrefix(entry.Name, "__substg1.0_") {
			continue
		}
		buf, err := io.ReadAll(entry)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name, err)
		}
		streams[strings.ToUpper(entry.Name)] = buf
	}
	return streams, nil
}

// stringProp decodes the first present variant of a string property
func stringProp(streams map[string][]byte, prefix string) string {
	prefix = strings.ToUpper(prefix)
	if raw, ok := streams[prefix+"001F"]; ok {
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
		if err == nil {
			return strings.TrimRight(string(decoded), "\x00")
		}
	}
	if raw, ok := streams[prefix+"001E"]; ok {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err == nil {
			return strings.TrimRight(string(decoded), "\x00")
		}
	}
	if raw, ok := streams[prefix+"0102"]; ok {
		return strings.TrimRight(string(raw), "\x00")
	}
	return ""
}
