package brand

import (
	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/links"
	"github.com/mikey/mailtrust/internal/whitelist"
)

// DefaultLookalikeDistance is the largest edit distance still flagged as a lookalike
const DefaultLookalikeDistance = 2

// Engine decides whether link domains belong to a sender's brand
type Engine struct {
	allowlist   *whitelist.Checker
	maxDistance int
	logger      *zap.Logger
}

// NewEngine creates a new brand alignment engine. A nil allowlist only
// aligns domains that share a registrable domain or root label.
func NewEngine(allowlist *whitelist.Checker, maxDistance int, logger *zap.Logger) *Engine {
	if maxDistance < 0 {
		maxDistance = DefaultLookalikeDistance
	}
	return &Engine{
		allowlist:   allowlist,
		maxDistance: maxDistance,
		logger:      logger,
	}
}

// SameBrand reports whether a and b share a registrable domain or a root
// label, e.g. ebay.com and ebay.co.uk
func (e *Engine) SameBrand(a, b string) bool {
	da, db := links.RegistrableDomain(a), links.RegistrableDomain(b)
	if da == "" || db == "" {
		return false
	}
	if da == db {
		return true
	}
	ra, rb := links.RootLabel(da), links.RootLabel(db)
	return ra != "" && ra == rb
}

// Aligned reports whether link belongs to the brand of sender, either
// directly or through the brand's allowlisted infrastructure domains
func (e *Engine) Aligned(sender, link string) bool {
	if e.SameBrand(sender, link) {
		return true
	}
	if e.allowlist == nil {
		return false
	}
	return e.allowlist.IsAllowlisted(links.RootLabel(sender), links.RegistrableDomain(link))
}

// IsLookalike reports whether a and b are spelled within the edit distance
// threshold without being the same brand
func (e *Engine) IsLookalike(a, b string) bool {
	da, db := links.RegistrableDomain(a), links.RegistrableDomain(b)
	if da == "" || db == "" || e.SameBrand(da, db) {
		return false
	}

	distance := levenshtein.ComputeDistance(da, db)
	if distance > e.maxDistance {
		return false
	}

	if e.logger != nil {
		e.logger.Debug("Lookalike domain detected",
			zap.String("domain", da),
			zap.String("similar_to", db),
			zap.Int("distance", distance))
	}
	return true
}
