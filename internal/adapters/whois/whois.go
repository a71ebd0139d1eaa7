// Package whois looks up domain creation dates over WHOIS.
package whois

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/likexian/whois"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/utils"
)

// ErrNoCreationDate is returned when no response in the referral chain has a creation date
var ErrNoCreationDate = errors.New("whois: creation date not found")

// creationKeys are the field names registries use for the creation date
var creationKeys = []string{
	"creation date",
	"created",
	"created on",
	"created date",
	"created-date",
	"domain create date",
	"domain registration date",
	"registration date",
	"registration time",
	"registered",
	"registered on",
	"domain name commencement date",
}

var referralKeys = []string{
	"registrar whois server",
	"whois server",
	"refer",
	"whois",
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006.01.02",
	"2006/01/02",
	"02-Jan-2006",
	"02.01.2006",
	"Mon Jan 2 15:04:05 MST 2006",
}

// Querier is the part of the likexian whois client we use
type Querier interface {
	Whois(domain string, servers ...string) (string, error)
}

// Client follows WHOIS referrals up to a fixed depth and extracts the creation date
type Client struct {
	querier      Querier
	maxReferrals int
	logger       *zap.Logger
}

// NewClient creates a WHOIS client. Referral following is done here, not by
// the underlying library, so the depth stays bounded.
func NewClient(timeout time.Duration, maxReferrals int, logger *zap.Logger) *Client {
	wc := whois.NewClient()
	wc.SetTimeout(timeout)
	wc.SetDisableReferral(true)
	return NewClientWithQuerier(wc, maxReferrals, logger)
}

// NewClientWithQuerier creates a WHOIS client on top of any Querier
func NewClientWithQuerier(q Querier, maxReferrals int, logger *zap.Logger) *Client {
	if maxReferrals < 0 {
		maxReferrals = 0
	}
	return &Client{
		querier:      q,
		maxReferrals: maxReferrals,
		logger:       logger,
	}
}

// CreationDate returns the creation date of a domain. The blocking WHOIS
// exchange is abandoned when ctx is done.
func (c *Client) CreationDate(ctx context.Context, domain string) (time.Time, error) {
	return utils.Race(ctx, 0, func(ctx context.Context) (time.Time, error) {
		return c.lookup(ctx, strings.ToLower(domain))
	})
}

func (c *Client) lookup(ctx context.Context, domain string) (time.Time, error) {
	var responses []string
	server := ""
	visited := map[string]bool{}

	for depth := 0; depth <= c.maxReferrals; depth++ {
		if err := ctx.Err(); err != nil {
			break
		}

		var resp string
		var err error
		if server == "" {
			resp, err = c.querier.Whois(domain)
		} else {
			resp, err = c.querier.Whois(domain, server)
		}
		if err != nil {
			if len(responses) == 0 {
				return time.Time{}, fmt.Errorf("whois query for %s: %w", domain, err)
			}
			c.logger.Debug("WHOIS referral query failed",
				zap.String("domain", domain),
				zap.String("server", server),
				zap.Error(err))
			break
		}
		responses = append(responses, resp)

		next := Referral(resp)
		if next == "" || visited[next] {
			break
		}
		visited[next] = true
		server = next
	}

	// The most specific (last) response is the most trustworthy
	for i := len(responses) - 1; i >= 0; i-- {
		if t, ok := ParseCreationDate(responses[i]); ok {
			return t, nil
		}
	}
	return time.Time{}, ErrNoCreationDate
}

// fields yields the lower-cased key and trimmed value of each "key: value" line
func fields(resp string, fn func(key, value string) bool) {
	sc := bufio.NewScanner(strings.NewReader(resp))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if !fn(strings.ToLower(strings.TrimSpace(key)), value) {
			return
		}
	}
}

// Referral returns the WHOIS server a response refers to, if any
func Referral(resp string) string {
	var server string
	fields(resp, func(key, value string) bool {
		for _, k := range referralKeys {
			if key == k {
				server = normalizeServer(value)
				return server == ""
			}
		}
		return true
	})
	return server
}

func normalizeServer(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if i := strings.Index(v, "://"); i >= 0 {
		v = v[i+3:]
	}
	v = strings.TrimSuffix(v, "/")
	if strings.ContainsAny(v, " /") || !strings.Contains(v, ".") {
		return ""
	}
	return v
}

// ParseCreationDate finds a creation date field in a WHOIS response
func ParseCreationDate(resp string) (time.Time, bool) {
	var found time.Time
	fields(resp, func(key, value string) bool {
		for _, k := range creationKeys {
			if key != k {
				continue
			}
			if t, ok := parseDate(value); ok {
				found = t
				return false
			}
		}
		return true
	})
	return found, !found.IsZero()
}

func parseDate(v string) (time.Time, bool) {
	candidates := []string{v}
	if f := strings.Fields(v); len(f) > 1 {
		candidates = append(candidates, f[0])
	}
	for _, s := range candidates {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}
