package factory

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/adapters/dns"
	"github.com/mikey/mailtrust/internal/adapters/rdap"
	"github.com/mikey/mailtrust/internal/adapters/whois"
	"github.com/mikey/mailtrust/internal/config"
	"github.com/mikey/mailtrust/internal/reputation"
)

// ReputationFactory wires the DNS, RDAP and WHOIS adapters into a domain
// reputation resolver
type ReputationFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewReputationFactory creates a new reputation factory
func NewReputationFactory(cfg *config.Config, logger *zap.Logger) *ReputationFactory {
	return &ReputationFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateResolver creates the domain reputation resolver
func (f *ReputationFactory) CreateResolver() *reputation.Resolver {
	dnsCfg := f.cfg.GetDNS()
	repCfg := f.cfg.GetReputation()

	resolver := dns.NewResolver(dns.Config{
		Nameservers: dnsCfg.Nameservers,
		Timeout:     dnsCfg.Timeout,
		Retries:     dnsCfg.Retries,
	}, f.logger)

	rdapClient := rdap.NewClient(
		f.cfg.GetRDAP().BaseURL,
		&http.Client{Timeout: repCfg.RDAPTimeout},
		f.logger,
	)

	whoisClient := whois.NewClient(repCfg.WhoisTimeout, f.cfg.GetWhois().MaxReferrals, f.logger)

	return reputation.NewResolver(resolver, rdapClient, whoisClient, repCfg.DBLZone, reputation.Timeouts{
		MX:    repCfg.MXTimeout,
		A:     repCfg.ATimeout,
		DBL:   repCfg.DBLTimeout,
		RDAP:  repCfg.RDAPTimeout,
		Whois: repCfg.WhoisTimeout,
	}, f.logger)
}
