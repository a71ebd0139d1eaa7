package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/core"
	"github.com/mikey/mailtrust/internal/ports"
	"github.com/mikey/mailtrust/internal/utils"
)

// CliFilter runs inspections and verifications from the command line and
// prints a report
type CliFilter struct {
	inspector ports.Inspector
	verifier  ports.Verifier
	text      *utils.TextProcessor
	logger    *zap.Logger
	out       io.Writer
	json      bool
	verbose   bool
}

// NewCliFilter creates a new CLI filter
func NewCliFilter(
	inspector ports.Inspector,
	verifier ports.Verifier,
	text *utils.TextProcessor,
	logger *zap.Logger,
	out io.Writer,
	jsonOutput bool,
	verbose bool,
) *CliFilter {
	return &CliFilter{
		inspector: inspector,
		verifier:  verifier,
		text:      text,
		logger:    logger,
		out:       out,
		json:      jsonOutput,
		verbose:   verbose,
	}
}

// Inspect scores a message and prints the result
func (f *CliFilter) Inspect(ctx context.Context, filename string, data []byte) (*core.InspectResult, error) {
	f.logger.Debug("Inspecting message", zap.String("filename", filename), zap.Int("size", len(data)))

	start := time.Now()
	result, err := f.inspector.Inspect(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	if f.json {
		return result, f.writeJSON(result)
	}

	fmt.Fprintf(f.out, "\n=== Message ===\n")
	fmt.Fprintf(f.out, "Kind: %s\n", result.Kind)
	fmt.Fprintf(f.out, "From: %s\n", result.Meta.From)
	fmt.Fprintf(f.out, "Subject: %s\n", result.Meta.Subject)
	if result.Meta.Date != "" {
		fmt.Fprintf(f.out, "Date: %s\n", result.Meta.Date)
	}
	fmt.Fprintf(f.out, "Auth: spf=%s dkim=%s dmarc=%s\n", result.Auth.SPF, result.Auth.DKIM, result.Auth.DMARC)

	fmt.Fprintf(f.out, "\n=== Links ===\n")
	if len(result.LinkDomains) == 0 {
		fmt.Fprintf(f.out, "(none)\n")
	}
	for _, d := range result.LinkDomains {
		dns := "ok"
		if !d.DNS {
			dns = "no DNS"
		}
		fmt.Fprintf(f.out, "%s [%s]\n", d.Domain, dns)
	}
	if f.verbose {
		for _, link := range result.Links {
			fmt.Fprintf(f.out, "  %s\n", f.text.Preview(link, 120))
		}
	}

	fmt.Fprintf(f.out, "\n=== Verdict ===\n")
	fmt.Fprintf(f.out, "Verdict: %s\n", strings.ToUpper(string(result.Verdict)))
	fmt.Fprintf(f.out, "Score: %d\n", result.Score)
	for _, r := range result.Reasons {
		fmt.Fprintf(f.out, "- %s\n", r)
	}
	fmt.Fprintf(f.out, "\nTips:\n")
	for _, t := range result.Tips {
		fmt.Fprintf(f.out, "- %s\n", t)
	}
	if f.verbose {
		fmt.Fprintf(f.out, "\nID: %s\nProcessing time: %v\n", result.ID, time.Since(start))
	}

	return result, nil
}

// Verify classifies an address and prints the result
func (f *CliFilter) Verify(ctx context.Context, address string) *core.VerifyResult {
	f.logger.Debug("Verifying address", zap.String("address", address))

	result := f.verifier.Verify(ctx, address)
	if f.json {
		if err := f.writeJSON(result); err != nil {
			f.logger.Error("Failed to write result", zap.Error(err))
		}
		return result
	}

	fmt.Fprintf(f.out, "\n=== Address ===\n")
	fmt.Fprintf(f.out, "Input: %s\n", result.Input)
	fmt.Fprintf(f.out, "Format OK: %t\n", result.FormatOK)
	fmt.Fprintf(f.out, "Domain: %s\n", result.Domain)
	fmt.Fprintf(f.out, "Has MX: %t\n", result.HasMX)
	for _, mx := range result.MX {
		fmt.Fprintf(f.out, "  %d %s\n", mx.Priority, mx.Host)
	}
	fmt.Fprintf(f.out, "Mailbox: %s\n", result.Mailbox.Status)
	fmt.Fprintf(f.out, "Blocklisted (%s): %t\n", result.DBL.Zone, result.DBL.Listed)
	if result.Whois.Created != "" {
		fmt.Fprintf(f.out, "Registered: %s\n", result.Whois.Created)
	}

	fmt.Fprintf(f.out, "\n=== Verdict ===\n")
	fmt.Fprintf(f.out, "List: %s\n", result.Verdict.List)
	fmt.Fprintf(f.out, "Safe to send: %t\n", result.Verdict.SafeToSend)
	fmt.Fprintf(f.out, "Confidence: %d (%s)\n", result.Verdict.Confidence.Score, result.Verdict.Confidence.Band)
	fmt.Fprintf(f.out, "Source: %s\n", result.Source)
	for _, n := range result.Notes {
		fmt.Fprintf(f.out, "- %s\n", n)
	}

	return result
}

func (f *CliFilter) writeJSON(v interface{}) error {
	enc := json.NewEncoder(f.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
