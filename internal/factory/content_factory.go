package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/extractor"
	"github.com/mikey/mailtrust/internal/links"
	"github.com/mikey/mailtrust/internal/utils"
)

// ContentFactory creates the text and message processing components
type ContentFactory struct {
	logger *zap.Logger
}

// NewContentFactory creates a new ContentFactory
func NewContentFactory(logger *zap.Logger) *ContentFactory {
	return &ContentFactory{
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *ContentFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreateContentExtractor creates the message extractor for eml, msg, html and text
func (f *ContentFactory) CreateContentExtractor(text *utils.TextProcessor) *extractor.Extractor {
	return extractor.NewExtractor(text, f.logger)
}

// CreateLinkExtractor creates the link and domain extractor
func (f *ContentFactory) CreateLinkExtractor() *links.Extractor {
	return links.NewExtractor(f.logger)
}
