package whitelist

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// DefaultBrandDomains maps brand root labels to infrastructure domains that
// belong to the brand without sharing its name
var DefaultBrandDomains = map[string][]string{
	"ebay":      {"ebaystatic.com", "ebayimg.com", "ebaydesc.com", "ebayrtm.com", "ebayinc.com"},
	"paypal":    {"paypalobjects.com", "paypal-communication.com", "paypal.me", "paypal-community.com"},
	"google":    {"gstatic.com", "googleusercontent.com", "googleapis.com", "youtube.com", "goo.gl", "g.co", "withgoogle.com"},
	"microsoft": {"microsoftonline.com", "live.com", "office.com", "office365.com", "outlook.com", "sharepoint.com", "msn.com", "aka.ms"},
	"apple":     {"icloud.com", "mzstatic.com", "apple.news", "me.com"},
	"amazon":    {"amazonaws.com", "media-amazon.com", "ssl-images-amazon.com", "awstrack.me", "primevideo.com"},
	"facebook":  {"fbcdn.net", "fb.com", "facebookmail.com", "instagram.com", "messenger.com"},
	"linkedin":  {"licdn.com", "lnkd.in"},
}

// Checker answers whether a domain is allowlisted infrastructure of a brand
type Checker struct {
	domains map[string]map[string]bool
	logger  *zap.Logger
}

// NewChecker creates a new allowlist checker from root label -> domains
func NewChecker(brands map[string][]string, logger *zap.Logger) *Checker {
	normalized := make(map[string]map[string]bool, len(brands))
	for root, domains := range brands {
		root = strings.ToLower(strings.TrimSpace(root))
		if root == "" {
			continue
		}
		set := normalized[root]
		if set == nil {
			set = make(map[string]bool, len(domains))
			normalized[root] = set
		}
		for _, d := range domains {
			d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
			if d != "" {
				set[d] = true
			}
		}
	}

	if len(normalized) > 0 && logger != nil {
		roots := make([]string, 0, len(normalized))
		for root := range normalized {
			roots = append(roots, root)
		}
		sort.Strings(roots)
		logger.Info("Initialized brand allowlist", zap.Strings("brands", roots))
	}

	return &Checker{
		domains: normalized,
		logger:  logger,
	}
}

// IsAllowlisted reports whether domain is listed as infrastructure of the brand rootLabel
func (c *Checker) IsAllowlisted(rootLabel, domain string) bool {
	set := c.domains[strings.ToLower(rootLabel)]
	if len(set) == 0 {
		return false
	}

	domain = strings.Trim(strings.ToLower(domain), ".")
	if set[domain] {
		if c.logger != nil {
			c.logger.Debug("Domain is brand infrastructure",
				zap.String("brand", rootLabel),
				zap.String("domain", domain))
		}
		return true
	}
	return false
}
