package core

import (
	"context"
	"errors"
	"net"
	"time"
)

// ErrRecordNotFound is wrapped by DNSResolver errors for names or records that do not exist
var ErrRecordNotFound = errors.New("record not found")

// DNSResolver performs the raw lookups the reputation resolver needs
type DNSResolver interface {
	// LookupMX returns the MX records of a domain
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)

	// LookupA returns the IPv4 addresses of a name
	LookupA(ctx context.Context, name string) ([]net.IP, error)
}

// RDAPClient looks up registration metadata over RDAP
type RDAPClient interface {
	// RegistrationDate returns the creation date of a domain
	RegistrationDate(ctx context.Context, domain string) (time.Time, error)
}

// WhoisClient looks up registration metadata over WHOIS
type WhoisClient interface {
	// CreationDate returns the creation date of a domain
	CreationDate(ctx context.Context, domain string) (time.Time, error)
}

// ReputationResolver combines DNS, blocklist and registry lookups for a domain
type ReputationResolver interface {
	// Resolve gathers the complete reputation of a domain
	Resolve(ctx context.Context, domain string) DomainReputation

	// HasDNS reports whether a domain has an MX or A record
	HasDNS(ctx context.Context, domain string) bool

	// BlocklistZone is the DNS zone consulted for blocklist checks
	BlocklistZone() string
}

// MailboxProvider classifies whether an address accepts mail
type MailboxProvider interface {
	// Name identifies the provider in verification results
	Name() string

	// Classify submits an address for classification
	Classify(ctx context.Context, address string) (*MailboxClassification, error)
}

// ResultCache memoizes verification results by normalized address
type ResultCache interface {
	// Get returns a cached result younger than the cache TTL
	Get(ctx context.Context, key string) (*VerifyResult, error)

	// Set stores a result
	Set(ctx context.Context, key string, result *VerifyResult) error

	// Delete removes a cached result
	Delete(ctx context.Context, key string) error
}

// ContentExtractor normalizes raw message payloads
type ContentExtractor interface {
	Extract(filename string, data []byte) (*NormalizedMessage, error)
}

// LinkExtractor pulls links and their registrable domains out of a message
type LinkExtractor interface {
	Extract(text, html string) (links []string, domains []string)
}

// VerdictScorer turns message signals into an assessment
type VerdictScorer interface {
	Score(senderDomain string, linkDomains []string, auth AuthSignals, text string, missingDNS int) Assessment
}
