package extractor

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-msgauth/authres"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/mikey/mailtrust/internal/core"
)

func init() {
	// Legacy charsets still common in phishing mail
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

var authToken = regexp.MustCompile(`(?i)\b(spf|dkim|dmarc)\s*=\s*([a-z]+)`)

func (e *Extractor) parseEML(data []byte) (*core.NormalizedMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(data))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to create mail reader: %w", err)
	}
	if mr == nil {
		return nil, fmt.Errorf("failed to create mail reader: %w", err)
	}
	defer mr.Close()

	msg := &core.NormalizedMessage{
		Kind: core.KindEML,
		Auth: authFromHeader(&mr.Header),
	}

	h := mr.Header
	if subject, err := h.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = h.Get("Subject")
	}

	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	} else if raw := h.Get("From"); raw != "" {
		msg.From = raw
	}

	if date, err := h.Date(); err == nil && !date.IsZero() {
		msg.Date = date.UTC().Format(time.RFC3339)
	}

	parts := 0
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			if parts == 0 {
				return nil, fmt.Errorf("failed to read part: %w", err)
			}
			e.logger.Debug("Stopped reading message parts", zap.Int("parts", parts), zap.Error(err))
			break
		}
		if part == nil {
			break
		}
		parts++

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := inline.ContentType()
		if contentType == "" {
			contentType = "text/plain"
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			e.logger.Debug("Failed to read message part", zap.String("content_type", contentType), zap.Error(err))
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			if msg.BodyText == "" {
				msg.BodyText = string(body)
			}
		case strings.HasPrefix(contentType, "text/html"):
			msg.BodyHTML = string(body)
		}
	}
	if msg.BodyText == "" && msg.BodyHTML != "" {
		msg.BodyText = HTMLText(msg.BodyHTML)
	}

	return msg, nil
}

type authHeader interface {
	FieldsByKey(k string) message.HeaderFields
}

// authFromHeader derives SPF, DKIM and DMARC results from the
// Authentication-Results headers, then Received-SPF for SPF
func authFromHeader(h authHeader) core.AuthSignals {
	found := map[string]core.AuthValue{}
	set := func(method, value string) {
		method = strings.ToLower(method)
		if _, ok := found[method]; ok {
			return
		}
		found[method] = authValue(value)
	}

	fields := h.FieldsByKey("Authentication-Results")
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		if _, results, err := authres.Parse(value); err == nil && len(results) > 0 {
			for _, r := range results {
				switch r := r.(type) {
				case *authres.SPFResult:
					set("spf", string(r.Value))
				case *authres.DKIMResult:
					set("dkim", string(r.Value))
				case *authres.DMARCResult:
					set("dmarc", string(r.Value))
				}
			}
			continue
		}
		for _, m := range authToken.FindAllStringSubmatch(value, -1) {
			set(m[1], m[2])
		}
	}

	if _, ok := found["spf"]; !ok {
		spf := h.FieldsByKey("Received-SPF")
		if spf.Next() {
			if words := strings.Fields(spf.Value()); len(words) > 0 {
				set("spf", words[0])
			}
		}
	}

	signals := core.AuthSignals{SPF: core.AuthUnknown, DKIM: core.AuthUnknown, DMARC: core.AuthUnknown}
	if v, ok := found["spf"]; ok {
		signals.SPF = v
	}
	if v, ok := found["dkim"]; ok {
		signals.DKIM = v
	}
	if v, ok := found["dmarc"]; ok {
		signals.DMARC = v
	}
	return signals
}

func authValue(v string) core.AuthValue {
	switch strings.ToLower(strings.Trim(v, " ;()")) {
	case "pass":
		return core.AuthPass
	case "fail":
		return core.AuthFail
	default:
		return core.AuthUnknown
	}
}
