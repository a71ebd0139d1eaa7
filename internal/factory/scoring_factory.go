package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/brand"
	"github.com/mikey/mailtrust/internal/config"
	"github.com/mikey/mailtrust/internal/scoring"
	"github.com/mikey/mailtrust/internal/whitelist"
)

// ScoringFactory creates the brand alignment engine and verdict scorer
type ScoringFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewScoringFactory creates a new scoring factory
func NewScoringFactory(cfg *config.Config, logger *zap.Logger) *ScoringFactory {
	return &ScoringFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateAllowlist merges the configured brand domains over the built-in ones
func (f *ScoringFactory) CreateAllowlist() *whitelist.Checker {
	brands := make(map[string][]string, len(whitelist.DefaultBrandDomains))
	for root, domains := range whitelist.DefaultBrandDomains {
		brands[root] = append([]string(nil), domains...)
	}
	for root, domains := range f.cfg.GetBrand().Allowlist {
		brands[root] = append(brands[root], domains...)
	}
	return whitelist.NewChecker(brands, f.logger)
}

// CreateScorer creates the verdict scorer
func (f *ScoringFactory) CreateScorer(allowlist *whitelist.Checker) *scoring.Scorer {
	engine := brand.NewEngine(allowlist, f.cfg.GetBrand().LookalikeDistance, f.logger)
	return scoring.NewScorer(engine, f.logger)
}
