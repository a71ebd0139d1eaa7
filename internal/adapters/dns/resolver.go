package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/core"
)

var (
	// ErrNotFound is returned for NXDOMAIN and for answers without matching records
	ErrNotFound = fmt.Errorf("dns: %w", core.ErrRecordNotFound)
	// ErrServFail is returned when every nameserver answered SERVFAIL
	ErrServFail = errors.New("dns: server failure")
	// ErrRefused is returned when every nameserver refused the query
	ErrRefused = errors.New("dns: query refused")
)

// Config contains configuration for the DNS resolver
type Config struct {
	// Nameservers to query, e.g. "8.8.8.8:53". Empty means the system
	// resolvers from /etc/resolv.conf, falling back to public DNS.
	Nameservers []string

	// Timeout for a single query exchange. Default is 2 seconds.
	Timeout time.Duration

	// Retries over the full nameserver list. Default is 1.
	Retries int
}

// Resolver implements core.DNSResolver using github.com/miekg/dns
type Resolver struct {
	config Config
	client *mdns.Client
	logger *zap.Logger
}

// NewResolver creates a new DNS resolver
func NewResolver(config Config, logger *zap.Logger) *Resolver {
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Second
	}
	if config.Retries <= 0 {
		config.Retries = 1
	}
	if len(config.Nameservers) == 0 {
		config.Nameservers = systemNameservers()
	}
	for i, s := range config.Nameservers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			config.Nameservers[i] = net.JoinHostPort(s, "53")
		}
	}

	return &Resolver{
		config: config,
		client: &mdns.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

// systemNameservers reads /etc/resolv.conf, falling back to public resolvers
func systemNameservers() []string {
	cc, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cc.Servers) == 0 {
		return []string{"8.8.8.8:53", "1.1.1.1:53"}
	}

	servers := make([]string, 0, len(cc.Servers))
	for _, s := range cc.Servers {
		servers = append(servers, net.JoinHostPort(s, cc.Port))
	}
	return servers
}

// query sends a question to the configured nameservers until one answers
func (r *Resolver) query(ctx context.Context, name string, qtype uint16) (*mdns.Msg, error) {
	m := new(mdns.Msg)
	m.SetQuestion(mdns.Fqdn(strings.ToLower(name)), qtype)
	m.RecursionDesired = true

	var lastErr error
	for i := 0; i < r.config.Retries; i++ {
		for _, server := range r.config.Nameservers {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			resp, _, err := r.client.ExchangeContext(ctx, m, server)
			if err != nil {
				lastErr = fmt.Errorf("dns query to %s failed: %w", server, err)
				continue
			}

			switch resp.Rcode {
			case mdns.RcodeSuccess:
				return resp, nil
			case mdns.RcodeNameError:
				return nil, ErrNotFound
			case mdns.RcodeServerFailure:
				lastErr = ErrServFail
			case mdns.RcodeRefused:
				lastErr = ErrRefused
			default:
				lastErr = fmt.Errorf("dns: unexpected rcode %s", mdns.RcodeToString[resp.Rcode])
			}
		}
	}

	r.logger.Debug("DNS query failed on all nameservers",
		zap.String("name", name),
		zap.String("type", mdns.TypeToString[qtype]),
		zap.Error(lastErr))

	if lastErr == nil {
		lastErr = ErrServFail
	}
	return nil, lastErr
}

// LookupMX returns the MX records of a domain
func (r *Resolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	resp, err := r.query(ctx, domain, mdns.TypeMX)
	if err != nil {
		return nil, err
	}

	var records []*net.MX
	for _, rr := range resp.Answer {
		if mx, ok := rr.(*mdns.MX); ok {
			records = append(records, &net.MX{
				Host: strings.TrimSuffix(mx.Mx, "."),
				Pref: mx.Preference,
			})
		}
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// LookupA returns the IPv4 addresses of a name
func (r *Resolver) LookupA(ctx context.Context, name string) ([]net.IP, error) {
	resp, err := r.query(ctx, name, mdns.TypeA)
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, rr := range resp.Answer {
		if a, ok := rr.(*mdns.A); ok {
			ips = append(ips, a.A)
		}
	}
	if len(ips) == 0 {
		return nil, ErrNotFound
	}
	return ips, nil
}

// IsNotFound reports whether err means the record does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
