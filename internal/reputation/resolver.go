// Package reputation resolves MX records, blocklist status and registration
// dates for a domain. Every step is time-bounded and a failure in one step
// degrades to an empty result instead of aborting the others.
package reputation

import (
	"context"
	"errors"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/core"
	"github.com/mikey/mailtrust/internal/metrics"
	"github.com/mikey/mailtrust/internal/utils"
)

// Timeouts bound each lookup step
type Timeouts struct {
	MX    time.Duration
	A     time.Duration
	DBL   time.Duration
	RDAP  time.Duration
	Whois time.Duration
}

// DefaultTimeouts are the per-step budgets used when none are configured
var DefaultTimeouts = Timeouts{
	MX:    5 * time.Second,
	A:     4 * time.Second,
	DBL:   3 * time.Second,
	RDAP:  6 * time.Second,
	Whois: 6 * time.Second,
}

// Resolver implements core.ReputationResolver
type Resolver struct {
	dns      core.DNSResolver
	rdap     core.RDAPClient
	whois    core.WhoisClient
	zone     string
	timeouts Timeouts
	logger   *zap.Logger
}

// NewResolver creates a reputation resolver. rdap and whois may be nil, in
// which case registration dates are never found.
func NewResolver(dns core.DNSResolver, rdap core.RDAPClient, whois core.WhoisClient, zone string, timeouts Timeouts, logger *zap.Logger) *Resolver {
	return &Resolver{
		dns:      dns,
		rdap:     rdap,
		whois:    whois,
		zone:     strings.Trim(strings.ToLower(zone), "."),
		timeouts: timeouts,
		logger:   logger,
	}
}

// attempt is one step of a fallback chain; ok reports a usable result
type attempt[T any] func(ctx context.Context) (value T, ok bool)

// firstOf runs attempts in order and returns the first usable result
func firstOf[T any](ctx context.Context, attempts ...attempt[T]) (T, bool) {
	var zero T
	for _, try := range attempts {
		if ctx.Err() != nil {
			break
		}
		if v, ok := try(ctx); ok {
			return v, true
		}
	}
	return zero, false
}

// timed runs op under the step's budget and records the outcome
func timed[T any](ctx context.Context, r *Resolver, kind, subject string, d time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	v, err := utils.Race(ctx, d, op)

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, utils.ErrTimeout):
		result = "timeout"
	case isNotFound(err):
		result = "notfound"
	default:
		result = "error"
	}
	metrics.LookupObserve(kind, result, start)

	if err != nil {
		r.logger.Debug("Lookup degraded",
			zap.String("kind", kind),
			zap.String("subject", subject),
			zap.String("result", result),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
	}
	return v, err
}

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return true
	}
	return errors.Is(err, core.ErrRecordNotFound)
}

// Resolve gathers MX, blocklist and registration data for domain concurrently
func (r *Resolver) Resolve(ctx context.Context, domain string) core.DomainReputation {
	domain = normalize(domain)
	var rep core.DomainReputation
	if domain == "" {
		return rep
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		rep.MX = r.MX(ctx, domain)
	}()
	go func() {
		defer wg.Done()
		rep.Blocklisted = r.Blocklisted(ctx, domain)
	}()
	go func() {
		defer wg.Done()
		rep.Registered = r.RegistrationDate(ctx, domain)
	}()
	wg.Wait()

	r.logger.Debug("Resolved domain reputation",
		zap.String("domain", domain),
		zap.Int("mx_count", len(rep.MX)),
		zap.Bool("blocklisted", rep.Blocklisted),
		zap.Bool("registered_known", rep.Registered != nil))

	return rep
}

// HasDNS reports whether domain has an MX record or an address record
func (r *Resolver) HasDNS(ctx context.Context, domain string) bool {
	return len(r.MX(ctx, normalize(domain))) > 0
}

// BlocklistZone is the DNS zone consulted for blocklist checks
func (r *Resolver) BlocklistZone() string {
	return r.zone
}

// MX returns the mail exchangers of domain. Without MX records, an A record
// on the domain itself stands in as an implicit MX with priority 0.
func (r *Resolver) MX(ctx context.Context, domain string) []core.MXRecord {
	records, _ := firstOf(ctx,
		func(ctx context.Context) ([]core.MXRecord, bool) {
			mxs, err := timed(ctx, r, "mx", domain, r.timeouts.MX, func(ctx context.Context) ([]*net.MX, error) {
				return r.dns.LookupMX(ctx, domain)
			})
			if err != nil || len(mxs) == 0 {
				return nil, false
			}
			out := make([]core.MXRecord, 0, len(mxs))
			for _, mx := range mxs {
				out = append(out, core.MXRecord{Host: strings.TrimSuffix(mx.Host, "."), Priority: mx.Pref})
			}
			sortMX(out)
			return out, true
		},
		func(ctx context.Context) ([]core.MXRecord, bool) {
			ips, err := timed(ctx, r, "a", domain, r.timeouts.A, func(ctx context.Context) ([]net.IP, error) {
				return r.dns.LookupA(ctx, domain)
			})
			if err != nil || len(ips) == 0 {
				return nil, false
			}
			return []core.MXRecord{{Host: domain, Priority: 0}}, true
		},
	)
	return records
}

// Blocklisted reports whether domain resolves inside the blocklist zone
func (r *Resolver) Blocklisted(ctx context.Context, domain string) bool {
	if r.zone == "" || domain == "" {
		return false
	}
	name := domain + "." + r.zone
	ips, err := timed(ctx, r, "dbl", name, r.timeouts.DBL, func(ctx context.Context) ([]net.IP, error) {
		return r.dns.LookupA(ctx, name)
	})
	return err == nil && len(ips) > 0
}

// RegistrationDate returns the creation date of domain from RDAP, falling
// back to WHOIS. Nil when neither source knows it.
func (r *Resolver) RegistrationDate(ctx context.Context, domain string) *time.Time {
	var attempts []attempt[time.Time]
	if r.rdap != nil {
		attempts = append(attempts, func(ctx context.Context) (time.Time, bool) {
			t, err := timed(ctx, r, "rdap", domain, r.timeouts.RDAP, func(ctx context.Context) (time.Time, error) {
				return r.rdap.RegistrationDate(ctx, domain)
			})
			return t, err == nil && !t.IsZero()
		})
	}
	if r.whois != nil {
		attempts = append(attempts, func(ctx context.Context) (time.Time, bool) {
			t, err := timed(ctx, r, "whois", domain, r.timeouts.Whois, func(ctx context.Context) (time.Time, error) {
				return r.whois.CreationDate(ctx, domain)
			})
			return t, err == nil && !t.IsZero()
		})
	}

	t, ok := firstOf(ctx, attempts...)
	if !ok {
		return nil
	}
	return &t
}

// sortMX orders exchangers by priority, then by host
func sortMX(records []core.MXRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Priority != records[j].Priority {
			return records[i].Priority < records[j].Priority
		}
		return records[i].Host < records[j].Host
	})
}

func normalize(domain string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(domain)), ".")
}
