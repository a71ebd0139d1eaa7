package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/adapters/filter"
	"github.com/mikey/mailtrust/internal/adapters/httpapi"
	"github.com/mikey/mailtrust/internal/config"
	"github.com/mikey/mailtrust/internal/ports"
	"github.com/mikey/mailtrust/internal/utils"
)

// FrontendFactory creates the surfaces that expose the services
type FrontendFactory struct {
	cfg       *config.Config
	logger    *zap.Logger
	inspector ports.Inspector
	verifier  ports.Verifier
	text      *utils.TextProcessor
}

// NewFrontendFactory creates a new frontend factory
func NewFrontendFactory(
	cfg *config.Config,
	logger *zap.Logger,
	inspector ports.Inspector,
	verifier ports.Verifier,
	text *utils.TextProcessor,
) *FrontendFactory {
	return &FrontendFactory{
		cfg:       cfg,
		logger:    logger,
		inspector: inspector,
		verifier:  verifier,
		text:      text,
	}
}

// CreateHTTPServer creates the HTTP API front end
func (f *FrontendFactory) CreateHTTPServer() *httpapi.Server {
	handlers := httpapi.NewHandlers(f.inspector, f.verifier, f.logger, f.cfg.GetInspect().MaxUploadBytes)
	return httpapi.NewServer(handlers, f.logger, f.cfg.GetServer().ListenAddress)
}

// CreateContentFilter creates the SMTP content filter, or nil when it is disabled
func (f *FrontendFactory) CreateContentFilter() *filter.ContentFilter {
	smtpCfg := f.cfg.GetSMTP()
	if !smtpCfg.Enabled {
		return nil
	}
	if smtpCfg.RelayAddress == "" {
		f.logger.Warn("SMTP content filter has no relay address, accepted mail will not be delivered")
	}
	return filter.NewContentFilter(
		f.inspector,
		f.text,
		f.logger,
		smtpCfg.ListenAddress,
		smtpCfg.RelayAddress,
		smtpCfg.RejectPhishing,
		smtpCfg.InspectTimeout,
	)
}

// CreateFrontends returns every enabled front end
func (f *FrontendFactory) CreateFrontends() []ports.Frontend {
	frontends := []ports.Frontend{f.CreateHTTPServer()}
	if cf := f.CreateContentFilter(); cf != nil {
		frontends = append(frontends, cf)
	}
	return frontends
}
