package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/core"
	"github.com/mikey/mailtrust/internal/ports"
	"github.com/mikey/mailtrust/internal/utils"
)

const (
	HeaderVerdict = "X-Mailtrust-Verdict"
	HeaderScore   = "X-Mailtrust-Score"
	HeaderReasons = "X-Mailtrust-Reasons"
	HeaderID      = "X-Mailtrust-Id"

	maxHeaderValue = 998
)

// ContentFilter is an SMTP content filter that stamps inspection verdicts
// onto mail and hands it back to the MTA
type ContentFilter struct {
	inspector      ports.Inspector
	text           *utils.TextProcessor
	logger         *zap.Logger
	listenAddr     string
	relayAddr      string
	rejectPhishing bool
	inspectTimeout time.Duration
	server         *smtp.Server
	listener       net.Listener
}

// NewContentFilter creates a new SMTP content filter
func NewContentFilter(
	inspector ports.Inspector,
	text *utils.TextProcessor,
	logger *zap.Logger,
	listenAddr string,
	relayAddr string,
	rejectPhishing bool,
	inspectTimeout time.Duration,
) *ContentFilter {
	if inspectTimeout <= 0 {
		inspectTimeout = 30 * time.Second
	}
	return &ContentFilter{
		inspector:      inspector,
		text:           text,
		logger:         logger,
		listenAddr:     listenAddr,
		relayAddr:      relayAddr,
		rejectPhishing: rejectPhishing,
		inspectTimeout: inspectTimeout,
	}
}

// Start binds the listen address and serves SMTP in the background
func (f *ContentFilter) Start() error {
	ln, err := net.Listen("tcp", f.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.listenAddr, err)
	}
	f.listener = ln

	f.server = smtp.NewServer(&smtpBackend{filter: f})
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50

	f.logger.Info("SMTP content filter starting",
		zap.String("address", ln.Addr().String()),
		zap.String("relay", f.relayAddr),
		zap.Bool("reject_phishing", f.rejectPhishing))

	go func() {
		if err := f.server.Serve(ln); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr is the bound address, useful when listening on port 0
func (f *ContentFilter) Addr() string {
	if f.listener == nil {
		return f.listenAddr
	}
	return f.listener.Addr().String()
}

// Stop closes the listener and all open sessions
func (f *ContentFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// Stamp prepends the verdict headers to a raw message
func (f *ContentFilter) Stamp(raw []byte, result *core.InspectResult) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s: %s\r\n", HeaderVerdict, result.Verdict)
	fmt.Fprintf(&buf, "%s: %d\r\n", HeaderScore, result.Score)
	fmt.Fprintf(&buf, "%s: %s\r\n", HeaderReasons, f.text.HeaderValue(strings.Join(result.Reasons, "; "), maxHeaderValue))
	if result.ID != "" {
		fmt.Fprintf(&buf, "%s: %s\r\n", HeaderID, result.ID)
	}
	buf.Write(raw)
	return buf.Bytes()
}

func (f *ContentFilter) shouldReject(result *core.InspectResult) bool {
	if !f.rejectPhishing {
		return false
	}
	return result.Verdict == core.VerdictPhishing || result.Verdict == core.VerdictClone
}

// relay sends the stamped message on to the MTA's reinjection port
func (f *ContentFilter) relay(sender string, recipients []string, data []byte) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", f.relayAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	accepted := 0
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			f.logger.Warn("Relay rejected recipient", zap.String("recipient", rcpt), zap.Error(err))
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return errors.New("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

type smtpBackend struct {
	filter *ContentFilter
}

func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

type smtpSession struct {
	filter     *ContentFilter
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data inspects the message and stamps, rejects or relays it
func (s *smtpSession) Data(r io.Reader) error {
	f := s.filter

	raw, err := io.ReadAll(r)
	if err != nil {
		f.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.inspectTimeout)
	defer cancel()

	result, err := f.inspector.Inspect(ctx, "message.eml", raw)
	if err != nil {
		// Mail is never lost because inspection failed
		f.logger.Error("Failed to inspect message, passing it through",
			zap.String("sender", s.sender),
			zap.Error(err))
		result = &core.InspectResult{
			Verdict: core.VerdictWarning,
			Reasons: []string{"Inspection failed: " + err.Error()},
		}
	}

	if f.shouldReject(result) {
		f.logger.Info("Rejecting message",
			zap.String("id", result.ID),
			zap.String("sender", s.sender),
			zap.String("verdict", string(result.Verdict)),
			zap.Int("score", result.Score))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      "Message rejected as " + string(result.Verdict) + " (score " + strconv.Itoa(result.Score) + ")",
		}
	}

	stamped := f.Stamp(raw, result)

	if f.relayAddr != "" {
		if err := f.relay(s.sender, s.recipients, stamped); err != nil {
			f.logger.Error("Failed to relay message",
				zap.String("id", result.ID),
				zap.String("sender", s.sender),
				zap.Error(err))
			return &smtp.SMTPError{
				Code:         451,
				EnhancedCode: smtp.EnhancedCode{4, 3, 0},
				Message:      "Relay unavailable, try again later",
			}
		}
	} else {
		f.logger.Warn("No relay address configured, message was inspected and dropped",
			zap.String("id", result.ID))
	}

	f.logger.Info("Processed message",
		zap.String("id", result.ID),
		zap.String("sender", s.sender),
		zap.Int("recipients", len(s.recipients)),
		zap.String("verdict", string(result.Verdict)),
		zap.Int("score", result.Score))

	return nil
}

func (s *smtpSession) Logout() error {
	return nil
}
