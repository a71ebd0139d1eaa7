package factory

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/adapters/mailbox"
	"github.com/mikey/mailtrust/internal/config"
	"github.com/mikey/mailtrust/internal/core"
)

// MailboxFactory creates the mailbox-classification provider
type MailboxFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMailboxFactory creates a new mailbox factory
func NewMailboxFactory(cfg *config.Config, logger *zap.Logger) *MailboxFactory {
	return &MailboxFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateMailboxProvider returns the configured provider, or nil when none is
// configured and verification runs on local checks only
func (f *MailboxFactory) CreateMailboxProvider() (core.MailboxProvider, error) {
	mbCfg := f.cfg.GetMailbox()

	switch mbCfg.Provider {
	case "":
		f.logger.Info("No mailbox provider configured, using local checks only")
		return nil, nil
	case "kickbox":
		if mbCfg.APIKey == "" {
			f.logger.Warn("Mailbox provider has no API key, verification will fall back to local checks",
				zap.String("provider", mbCfg.Provider))
		}
		client := &http.Client{Timeout: mbCfg.Timeout}
		return mailbox.NewKickboxClient(mbCfg.BaseURL, mbCfg.APIKey, mbCfg.Timeout, client, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported mailbox provider: %s", mbCfg.Provider)
	}
}

// ProviderTimeout is the budget for one mailbox classification
func (f *MailboxFactory) ProviderTimeout() time.Duration {
	return f.cfg.GetMailbox().Timeout
}
