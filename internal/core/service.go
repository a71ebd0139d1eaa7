package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/links"
	"github.com/mikey/mailtrust/internal/metrics"
	"github.com/mikey/mailtrust/internal/utils"
)

// InspectionService is the core service for message threat scoring
type InspectionService struct {
	extractor      ContentExtractor
	links          LinkExtractor
	reputation     ReputationResolver
	scorer         VerdictScorer
	logger         *zap.Logger
	linkDNSTimeout time.Duration
	maxInFlight    int
}

// NewInspectionService creates a new inspection service
func NewInspectionService(
	extractor ContentExtractor,
	links LinkExtractor,
	reputation ReputationResolver,
	scorer VerdictScorer,
	logger *zap.Logger,
	linkDNSTimeout time.Duration,
	maxInFlight int,
) *InspectionService {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &InspectionService{
		extractor:      extractor,
		links:          links,
		reputation:     reputation,
		scorer:         scorer,
		logger:         logger,
		linkDNSTimeout: linkDNSTimeout,
		maxInFlight:    maxInFlight,
	}
}

// Inspect extracts, links-checks and scores one message. Errors come only
// from extraction: empty input or an unreadable archive.
func (s *InspectionService) Inspect(ctx context.Context, filename string, data []byte) (*InspectResult, error) {
	id := ulid.Make().String()
	log := s.logger.With(zap.String("inspection_id", id))

	msg, err := s.extractor.Extract(filename, data)
	if err != nil {
		return nil, fmt.Errorf("extract message: %w", err)
	}

	found, domains := s.links.Extract(msg.BodyText, msg.BodyHTML)
	linkDomains := s.checkDomains(ctx, domains)

	missing := 0
	for _, ld := range linkDomains {
		if !ld.DNS {
			missing++
		}
	}

	senderDomain := links.RegistrableDomain(links.AddressDomain(msg.From))
	text := strings.Join([]string{msg.Subject, msg.BodyText}, "\n")
	assessment := s.scorer.Score(senderDomain, domains, msg.Auth, text, missing)

	metrics.VerdictInc(string(assessment.Verdict))
	log.Info("Inspected message",
		zap.String("kind", string(msg.Kind)),
		zap.String("from", msg.From),
		zap.String("sender_domain", senderDomain),
		zap.Int("links", len(found)),
		zap.Int("missing_dns", missing),
		zap.Int("score", assessment.Score),
		zap.String("verdict", string(assessment.Verdict)))

	if found == nil {
		found = []string{}
	}
	return &InspectResult{
		ID:   id,
		Kind: msg.Kind,
		Meta: MessageMeta{
			Subject: msg.Subject,
			From:    msg.From,
			Date:    msg.Date,
		},
		Auth:        msg.Auth,
		Links:       found,
		LinkDomains: linkDomains,
		Verdict:     assessment.Verdict,
		Score:       assessment.Score,
		Reasons:     assessment.Reasons,
		Tips:        assessment.Tips,
	}, nil
}

// checkDomains resolves DNS existence of every domain, with at most
// maxInFlight lookups running at once. A lookup that times out counts as
// missing DNS.
func (s *InspectionService) checkDomains(ctx context.Context, domains []string) []LinkDomain {
	out := make([]LinkDomain, len(domains))
	sem := make(chan struct{}, s.maxInFlight)
	var wg sync.WaitGroup

	for i, d := range domains {
		out[i].Domain = d
		wg.Add(1)
		go func(i int, d string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			out[i].DNS = utils.WithTimeout(ctx, s.linkDNSTimeout, false, func(ctx context.Context) (bool, error) {
				return s.reputation.HasDNS(ctx, d), nil
			})
		}(i, d)
	}
	wg.Wait()

	return out
}
