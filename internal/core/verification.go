package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/badoux/checkmail"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/metrics"
	"github.com/mikey/mailtrust/internal/utils"
)

// SourceLocal marks results computed without a mailbox provider
const SourceLocal = "local"

// ErrCacheMiss is returned by caches that have no fresh entry for a key
var ErrCacheMiss = errors.New("cache miss")

const (
	noteBaseline    = "Mailbox existence could not be confirmed; result uses format, MX and blocklist checks only"
	noteInvalid     = "Address format is invalid"
	noteNoMX        = "Domain has no MX or A record and cannot receive mail"
	noteCatchAll    = "Domain accepts mail for any address, so mailbox existence cannot be confirmed"
	youngDomainDays = 30
)

type scoreBand struct {
	score int
	band  string
}

var (
	confidenceHigh     = scoreBand{9, "high"}
	confidenceMedium   = scoreBand{5, "medium"}
	confidenceLow      = scoreBand{2, "low"}
	confidenceBaseline = scoreBand{4, "medium"}
)

// VerificationService is the core service for address verification
type VerificationService struct {
	reputation      ReputationResolver
	provider        MailboxProvider
	cache           ResultCache
	logger          *zap.Logger
	cacheEnabled    bool
	providerTimeout time.Duration
	now             func() time.Time
}

// NewVerificationService creates a new verification service. provider and
// cache may be nil.
func NewVerificationService(
	reputation ReputationResolver,
	provider MailboxProvider,
	cache ResultCache,
	logger *zap.Logger,
	cacheEnabled bool,
	providerTimeout time.Duration,
) *VerificationService {
	return &VerificationService{
		reputation:      reputation,
		provider:        provider,
		cache:           cache,
		logger:          logger,
		cacheEnabled:    cacheEnabled && cache != nil,
		providerTimeout: providerTimeout,
		now:             time.Now,
	}
}

// SetClock replaces the clock used for domain age
func (s *VerificationService) SetClock(now func() time.Time) {
	s.now = now
}

// NormalizeAddress trims and lowercases an address
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// ValidateAddress checks the shape of a normalized address and returns its domain
func ValidateAddress(address string) (string, bool) {
	if len(address) > 254 {
		return "", false
	}
	if err := checkmail.ValidateFormat(address); err != nil {
		return "", false
	}

	at := strings.LastIndexByte(address, '@')
	local, domain := address[:at], address[at+1:]
	if len(local) > 64 {
		return "", false
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		return "", false
	}
	if !strings.Contains(domain, ".") {
		return "", false
	}
	return domain, true
}

// Verify classifies an address. It never fails: upstream problems degrade
// the result to the local baseline with a note.
func (s *VerificationService) Verify(ctx context.Context, address string) *VerifyResult {
	key := NormalizeAddress(address)

	if s.cacheEnabled {
		cached, err := s.cache.Get(ctx, key)
		if err == nil && cached != nil {
			metrics.CacheInc(true)
			s.logger.Debug("Using cached verification result", zap.String("address", key))
			return cached
		}
		if err != nil && !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("Failed to read verification cache", zap.String("address", key), zap.Error(err))
		}
		metrics.CacheInc(false)
	}

	result := s.verify(ctx, key)

	metrics.VerifyInc(string(result.Verdict.List), result.Source)
	s.logger.Info("Verified address",
		zap.String("address", key),
		zap.String("source", result.Source),
		zap.String("list", string(result.Verdict.List)),
		zap.Bool("safe_to_send", result.Verdict.SafeToSend),
		zap.Int("confidence", result.Verdict.Confidence.Score))

	// A result degraded by the caller going away is not cached
	if s.cacheEnabled && ctx.Err() == nil {
		if err := s.cache.Set(ctx, key, result); err != nil {
			s.logger.Warn("Failed to cache verification result", zap.String("address", key), zap.Error(err))
		}
	}

	return result
}

func (s *VerificationService) verify(ctx context.Context, address string) *VerifyResult {
	result := &VerifyResult{
		Source:  SourceLocal,
		Input:   address,
		MX:      []MXRecord{},
		Mailbox: MailboxInfo{Status: MailboxUnknown},
		DBL:     BlocklistInfo{Zone: s.reputation.BlocklistZone()},
		Notes:   []string{},
	}

	domain, ok := ValidateAddress(address)
	if !ok {
		result.Verdict = AddressVerdict{
			List:       ListBlack,
			Confidence: Confidence{Score: confidenceLow.score, Band: confidenceLow.band},
		}
		result.Notes = append(result.Notes, noteInvalid)
		return result
	}
	result.FormatOK = true
	result.Domain = domain

	var (
		rep         DomainReputation
		cls         *MailboxClassification
		providerErr error
		wg          sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		rep = s.reputation.Resolve(ctx, domain)
	}()
	if s.provider != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			cls, providerErr = utils.Race(ctx, s.providerTimeout, func(ctx context.Context) (*MailboxClassification, error) {
				return s.provider.Classify(ctx, address)
			})
			outcome := "ok"
			if providerErr != nil {
				outcome = "error"
				if errors.Is(providerErr, utils.ErrTimeout) {
					outcome = "timeout"
				}
			}
			metrics.LookupObserve("mailbox", outcome, start)
		}()
	}
	wg.Wait()

	if len(rep.MX) > 0 {
		result.MX = rep.MX
	}
	result.HasMX = len(rep.MX) > 0
	result.DBL.Listed = rep.Blocklisted

	ageDays := 0
	if rep.Registered != nil {
		result.Whois.Created = rep.Registered.UTC().Format(time.RFC3339)
		ageDays = int(s.now().Sub(*rep.Registered).Hours() / 24)
		if ageDays < 0 {
			ageDays = 0
		}
	}

	if s.provider == nil || providerErr != nil || cls == nil {
		note := noteBaseline
		if providerErr != nil {
			note = fmt.Sprintf("%s: %v", noteBaseline, providerErr)
			s.logger.Warn("Mailbox provider failed, using local baseline",
				zap.String("provider", s.provider.Name()),
				zap.String("address", address),
				zap.Error(providerErr))
		}
		result.Notes = append(result.Notes, note)
		result.Verdict = s.localVerdict(result, ageDays)
	} else {
		result.Source = s.provider.Name()
		result.Mailbox = MailboxInfo{
			Status:     cls.Status,
			CatchAll:   cls.CatchAll || cls.Status == MailboxCatchAll,
			Suggestion: cls.Suggestion,
		}
		result.Verdict = s.providerVerdict(result, ageDays)
	}

	result.Notes = append(result.Notes, s.domainNotes(result, ageDays, rep.Registered != nil)...)
	return result
}

func (s *VerificationService) localVerdict(r *VerifyResult, ageDays int) AddressVerdict {
	v := AddressVerdict{
		List:       ListGrey,
		Confidence: Confidence{Score: confidenceBaseline.score, Band: confidenceBaseline.band, AgeDays: ageDays},
	}
	if r.DBL.Listed {
		v.List = ListBlack
	}
	v.SafeToSend = r.FormatOK && r.HasMX && !r.DBL.Listed && r.Mailbox.Status != MailboxUndeliverable
	return v
}

func (s *VerificationService) providerVerdict(r *VerifyResult, ageDays int) AddressVerdict {
	v := AddressVerdict{Strict: true}

	switch {
	case !r.FormatOK || r.DBL.Listed:
		v.List = ListBlack
	case r.Mailbox.Status == MailboxDeliverable && r.HasMX:
		v.List = ListWhite
	case r.Mailbox.Status == MailboxUndeliverable:
		v.List = ListBlack
	default:
		v.List = ListGrey
	}

	v.SafeToSend = r.FormatOK && r.HasMX && !r.DBL.Listed && r.Mailbox.Status == MailboxDeliverable

	band := confidenceLow
	switch {
	case v.SafeToSend:
		band = confidenceHigh
	case v.List == ListGrey:
		band = confidenceMedium
	}
	v.Confidence = Confidence{Score: band.score, Band: band.band, AgeDays: ageDays}
	return v
}

func (s *VerificationService) domainNotes(r *VerifyResult, ageDays int, registered bool) []string {
	var notes []string
	if !r.HasMX {
		notes = append(notes, noteNoMX)
	}
	if r.DBL.Listed {
		notes = append(notes, fmt.Sprintf("Domain is listed on the %s blocklist", r.DBL.Zone))
	}
	if r.Mailbox.CatchAll {
		notes = append(notes, noteCatchAll)
	}
	if r.Mailbox.Suggestion != "" {
		notes = append(notes, fmt.Sprintf("Did you mean %s?", r.Mailbox.Suggestion))
	}
	if registered && ageDays < youngDomainDays {
		notes = append(notes, fmt.Sprintf("Domain was registered %d days ago", ageDays))
	}
	return notes
}
