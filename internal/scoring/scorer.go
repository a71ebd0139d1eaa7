// Package scoring turns the signals gathered from a message into a risk
// score and a verdict. Scoring is a pure function of its inputs.
package scoring

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/brand"
	"github.com/mikey/mailtrust/internal/core"
)

// Thresholds of the verdict mapping
const (
	PhishingThreshold = 5
	WarningThreshold  = 3
)

const (
	reasonLinksAligned = "Links align with sender brand"
	reasonAuthPasses   = "At least one auth signal passes"
	reasonNoRisk       = "No risk signals detected"
)

var spamLanguage = regexp.MustCompile(`(?i)\b(winner|lottery|jackpot|you(?:'ve| have)? won|claim (?:now|your)|act now|urgent|gift ?card|wire transfer|western union|bitcoin|free (?:gift|money|prize)|limited time|congratulations)\b`)

// Signals is everything the scorer looks at for one message
type Signals struct {
	SenderDomain string
	LinkDomains  []string
	Auth         core.AuthSignals
	Text         string
	MissingDNS   int
}

// Rule is one independently evaluated risk signal
type Rule struct {
	Name      string
	Points    int
	Reason    string
	SetsClone bool
	Match     func(s Signals) bool
}

// Scorer implements core.VerdictScorer
type Scorer struct {
	brand  *brand.Engine
	rules  []Rule
	logger *zap.Logger
}

// NewScorer creates a scorer with the default rule set
func NewScorer(engine *brand.Engine, logger *zap.Logger) *Scorer {
	s := &Scorer{
		brand:  engine,
		logger: logger,
	}
	s.rules = s.defaultRules()
	return s
}

// Rules returns the rule set in evaluation order
func (s *Scorer) Rules() []Rule {
	return s.rules
}

func (s *Scorer) defaultRules() []Rule {
	return []Rule{
		{
			Name:   "spam_language",
			Points: 1,
			Reason: "Spam language",
			Match: func(sig Signals) bool {
				return spamLanguage.MatchString(sig.Text)
			},
		},
		{
			Name:   "auth_fail",
			Points: 3,
			Reason: "Auth fail in headers",
			Match: func(sig Signals) bool {
				return sig.Auth.AnyFail()
			},
		},
		{
			Name:      "lookalike_link",
			Points:    3,
			Reason:    "Lookalike domain similar to sender",
			SetsClone: true,
			Match: func(sig Signals) bool {
				if sig.SenderDomain == "" {
					return false
				}
				for _, d := range sig.LinkDomains {
					if s.brand.IsLookalike(d, sig.SenderDomain) {
						return true
					}
				}
				return false
			},
		},
		{
			Name:   "misaligned_link",
			Points: 2,
			Reason: "Links go to other brands/domains",
			Match: func(sig Signals) bool {
				if sig.SenderDomain == "" {
					return false
				}
				for _, d := range sig.LinkDomains {
					if !s.brand.Aligned(sig.SenderDomain, d) {
						return true
					}
				}
				return false
			},
		},
		{
			Name:   "missing_dns",
			Points: 2,
			Reason: "Some linked domains have no DNS",
			Match: func(sig Signals) bool {
				return sig.MissingDNS > 0
			},
		},
	}
}

// Score evaluates every rule against the message signals
func (s *Scorer) Score(senderDomain string, linkDomains []string, auth core.AuthSignals, text string, missingDNS int) core.Assessment {
	return s.Evaluate(Signals{
		SenderDomain: senderDomain,
		LinkDomains:  linkDomains,
		Auth:         auth,
		Text:         text,
		MissingDNS:   missingDNS,
	})
}

// Evaluate is Score over a Signals value
func (s *Scorer) Evaluate(sig Signals) core.Assessment {
	var a core.Assessment
	spam := false
	var matched []string

	for _, rule := range s.rules {
		if !rule.Match(sig) {
			continue
		}
		a.Score += rule.Points
		a.Reasons = append(a.Reasons, rule.Reason)
		matched = append(matched, rule.Name)
		if rule.SetsClone {
			a.IsClone = true
		}
		if rule.Name == "spam_language" {
			spam = true
		}
	}

	switch {
	case a.Score >= PhishingThreshold && a.IsClone:
		a.Verdict = core.VerdictClone
	case a.Score >= PhishingThreshold:
		a.Verdict = core.VerdictPhishing
	case a.Score >= WarningThreshold:
		a.Verdict = core.VerdictWarning
	case spam:
		a.Verdict = core.VerdictSpam
	default:
		a.Verdict = core.VerdictSafe
	}

	if a.Verdict == core.VerdictSafe {
		var positive []string
		if sig.SenderDomain != "" && len(sig.LinkDomains) > 0 && s.allAligned(sig) {
			positive = append(positive, reasonLinksAligned)
		}
		if sig.Auth.AnyPass() {
			positive = append(positive, reasonAuthPasses)
		}
		a.Reasons = append(positive, a.Reasons...)
		if len(a.Reasons) == 0 {
			a.Reasons = []string{reasonNoRisk}
		}
	}

	a.Tips = Tips(a.Verdict)

	if s.logger != nil {
		s.logger.Debug("Scored message",
			zap.Int("score", a.Score),
			zap.String("verdict", string(a.Verdict)),
			zap.Strings("rules", matched))
	}

	return a
}

func (s *Scorer) allAligned(sig Signals) bool {
	for _, d := range sig.LinkDomains {
		if !s.brand.Aligned(sig.SenderDomain, d) {
			return false
		}
	}
	return true
}

var tips = map[core.Verdict][]string{
	core.VerdictPhishing: {
		"Do not click any links or open attachments in this message.",
		"Do not enter passwords or payment details on pages it links to.",
		"Contact the company through its official website or app instead.",
		"Report the message to your email provider or IT team.",
	},
	core.VerdictSpam: {
		"Do not reply or send money, gift cards or personal details.",
		"Mark the message as spam and delete it.",
	},
	core.VerdictWarning: {
		"Check the sender address and link targets carefully before acting.",
		"Open the company's site directly rather than following the links.",
		"When in doubt, confirm with the sender through a known channel.",
	},
	core.VerdictSafe: {
		"No obvious threats found, but stay alert for unexpected requests.",
		"Never share passwords by email, even with trusted senders.",
	},
}

// Tips returns the fixed advice for a verdict. Phishing and clone share their tips.
func Tips(v core.Verdict) []string {
	if v == core.VerdictClone {
		v = core.VerdictPhishing
	}
	out := make([]string, len(tips[v]))
	copy(out, tips[v])
	return out
}
