package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/config"
	"github.com/mikey/mailtrust/internal/core"
	"github.com/mikey/mailtrust/internal/extractor"
	"github.com/mikey/mailtrust/internal/factory"
	"github.com/mikey/mailtrust/internal/links"
	"github.com/mikey/mailtrust/internal/logging"
	"github.com/mikey/mailtrust/internal/ports"
	"github.com/mikey/mailtrust/internal/reputation"
	"github.com/mikey/mailtrust/internal/scoring"
	"github.com/mikey/mailtrust/internal/utils"
	"github.com/mikey/mailtrust/internal/whitelist"
)

// frontendsOut contributes the enabled front ends to the "frontends" group
type frontendsOut struct {
	dig.Out

	Frontends []ports.Frontend `group:"frontends,flatten"`
}

// Frontends collects every front end the server should run
type Frontends struct {
	dig.In

	All []ports.Frontend `group:"frontends"`
}

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideServices(container); err != nil {
		return nil, err
	}

	// Register front ends
	if err := container.Provide(factory.NewFrontendFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FrontendFactory) frontendsOut {
		return frontendsOut{Frontends: f.CreateFrontends()}
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideServices registers everything between configuration and the front
// ends. Both containers share it.
func provideServices(container *dig.Container) error {
	// Register factories
	for _, ctor := range []interface{}{
		factory.NewCacheFactory,
		factory.NewMailboxFactory,
		factory.NewReputationFactory,
		factory.NewContentFactory,
		factory.NewScoringFactory,
	} {
		if err := container.Provide(ctor); err != nil {
			return err
		}
	}

	// Register text processing
	if err := container.Provide(func(f *factory.ContentFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.ContentFactory, text *utils.TextProcessor) *extractor.Extractor {
		return f.CreateContentExtractor(text)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.ContentFactory) *links.Extractor {
		return f.CreateLinkExtractor()
	}); err != nil {
		return err
	}

	// Register brand alignment and scoring
	if err := container.Provide(func(f *factory.ScoringFactory) *whitelist.Checker {
		return f.CreateAllowlist()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.ScoringFactory, allowlist *whitelist.Checker) *scoring.Scorer {
		return f.CreateScorer(allowlist)
	}); err != nil {
		return err
	}

	// Register domain reputation
	if err := container.Provide(func(f *factory.ReputationFactory) *reputation.Resolver {
		return f.CreateResolver()
	}); err != nil {
		return err
	}

	// Register mailbox provider, nil when not configured
	if err := container.Provide(func(f *factory.MailboxFactory) (core.MailboxProvider, error) {
		return f.CreateMailboxProvider()
	}); err != nil {
		return err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (ports.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return err
	}

	// Register inspection service
	if err := container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		ext *extractor.Extractor,
		linkExtractor *links.Extractor,
		resolver *reputation.Resolver,
		scorer *scoring.Scorer,
	) *core.InspectionService {
		inspectCfg := cfg.GetInspect()
		return core.NewInspectionService(
			ext,
			linkExtractor,
			resolver,
			scorer,
			logger,
			inspectCfg.LinkDNSTimeout,
			inspectCfg.MaxLinkDomains,
		)
	}); err != nil {
		return err
	}

	// Register verification service
	if err := container.Provide(func(
		logger *zap.Logger,
		resolver *reputation.Resolver,
		provider core.MailboxProvider,
		cache ports.CacheRepository,
		cacheFactory *factory.CacheFactory,
		mailboxFactory *factory.MailboxFactory,
	) *core.VerificationService {
		return core.NewVerificationService(
			resolver,
			provider,
			cache,
			logger,
			cacheFactory.IsCacheEnabled(),
			mailboxFactory.ProviderTimeout(),
		)
	}); err != nil {
		return err
	}

	if err := container.Provide(func(s *core.InspectionService) ports.Inspector { return s }); err != nil {
		return err
	}
	return container.Provide(func(s *core.VerificationService) ports.Verifier { return s })
}
