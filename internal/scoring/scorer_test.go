package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/brand"
	"github.com/mikey/mailtrust/internal/core"
	"github.com/mikey/mailtrust/internal/whitelist"
)

func newScorer() *Scorer {
	allow := whitelist.NewChecker(whitelist.DefaultBrandDomains, zap.NewNop())
	return NewScorer(brand.NewEngine(allow, brand.DefaultLookalikeDistance, zap.NewNop()), zap.NewNop())
}

func passingAuth() core.AuthSignals {
	return core.AuthSignals{SPF: core.AuthPass, DKIM: core.AuthPass, DMARC: core.AuthPass}
}

func TestScorer_SpamLanguage(t *testing.T) {
	s := newScorer()

	a := s.Score("", nil, passingAuth(), "You are a WINNER! Claim now your free gift card!", 0)

	assert.Equal(t, 1, a.Score)
	assert.Equal(t, core.VerdictSpam, a.Verdict)
	assert.Equal(t, []string{"Spam language"}, a.Reasons)
	assert.Equal(t, Tips(core.VerdictSpam), a.Tips)
}

func TestScorer_BrandInfrastructureIsSafe(t *testing.T) {
	s := newScorer()

	a := s.Score("ebay.com", []string{"ebay.co.uk", "ebaystatic.com"}, passingAuth(), "Your order has shipped.", 0)

	assert.Equal(t, 0, a.Score)
	assert.Equal(t, core.VerdictSafe, a.Verdict)
	assert.False(t, a.IsClone)
	assert.Equal(t, []string{"Links align with sender brand", "At least one auth signal passes"}, a.Reasons)
}

func TestScorer_LookalikeClone(t *testing.T) {
	s := newScorer()
	auth := core.AuthSignals{SPF: core.AuthUnknown, DKIM: core.AuthFail, DMARC: core.AuthUnknown}

	a := s.Score("paypa1.com", []string{"paypal.com"}, auth, "Please confirm your account.", 0)

	assert.True(t, a.IsClone)
	assert.GreaterOrEqual(t, a.Score, 6)
	assert.Equal(t, core.VerdictClone, a.Verdict)
	assert.Contains(t, a.Reasons, "Lookalike domain similar to sender")
	assert.Contains(t, a.Reasons, "Auth fail in headers")
	assert.Equal(t, Tips(core.VerdictPhishing), a.Tips)
}

func TestScorer_VerdictMapping(t *testing.T) {
	s := newScorer()
	fail := core.AuthSignals{SPF: core.AuthFail, DKIM: core.AuthUnknown, DMARC: core.AuthUnknown}

	tests := []struct {
		name    string
		sender  string
		domains []string
		auth    core.AuthSignals
		text    string
		missing int
		score   int
		verdict core.Verdict
	}{
		{"nothing", "", nil, core.NotApplicableAuth(), "hello", 0, 0, core.VerdictSafe},
		{"misaligned only", "shop.example", []string{"other.example"}, core.NotApplicableAuth(), "hello", 0, 2, core.VerdictSafe},
		{"auth fail", "", nil, fail, "hello", 0, 3, core.VerdictWarning},
		{"auth fail and spam", "", nil, fail, "act now", 0, 4, core.VerdictWarning},
		{"misaligned without dns", "shop.example", []string{"other.example"}, core.NotApplicableAuth(), "hello", 1, 4, core.VerdictWarning},
		{"phishing", "shop.example", []string{"other.example"}, fail, "hello", 0, 5, core.VerdictPhishing},
		{"no sender skips brand rules", "", []string{"other.example"}, core.NotApplicableAuth(), "hello", 1, 2, core.VerdictSafe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := s.Score(tt.sender, tt.domains, tt.auth, tt.text, tt.missing)
			assert.Equal(t, tt.score, a.Score)
			assert.Equal(t, tt.verdict, a.Verdict)
			assert.NotEmpty(t, a.Reasons, "every verdict carries a reason")
			assert.NotEmpty(t, a.Tips)
		})
	}
}

func TestScorer_NoReasonsStillExplained(t *testing.T) {
	a := newScorer().Score("", nil, core.NotApplicableAuth(), "", 0)

	assert.Equal(t, core.VerdictSafe, a.Verdict)
	assert.Equal(t, []string{"No risk signals detected"}, a.Reasons)
}

func TestScorer_Monotonic(t *testing.T) {
	s := newScorer()
	base := Signals{
		SenderDomain: "paypal.com",
		LinkDomains:  []string{"paypal.com"},
		Auth:         passingAuth(),
		Text:         "Your statement is ready.",
	}

	addSignal := map[string]func(Signals) Signals{
		"auth fail": func(sig Signals) Signals {
			sig.Auth.DKIM = core.AuthFail
			return sig
		},
		"lookalike link": func(sig Signals) Signals {
			sig.LinkDomains = append(append([]string{}, sig.LinkDomains...), "paypa1.com")
			return sig
		},
		"misaligned link": func(sig Signals) Signals {
			sig.LinkDomains = append(append([]string{}, sig.LinkDomains...), "unrelated.example")
			return sig
		},
		"missing dns": func(sig Signals) Signals {
			sig.MissingDNS++
			return sig
		},
		"spam language": func(sig Signals) Signals {
			sig.Text += " Congratulations, you won!"
			return sig
		},
	}

	starts := []Signals{base}
	for _, add := range addSignal {
		starts = append(starts, add(base))
	}

	for _, start := range starts {
		before := s.Evaluate(start).Score
		for name, add := range addSignal {
			after := s.Evaluate(add(start)).Score
			assert.GreaterOrEqual(t, after, before, "adding %s lowered the score", name)
		}
	}
}

func TestTips_CloneSharesPhishing(t *testing.T) {
	assert.Equal(t, Tips(core.VerdictPhishing), Tips(core.VerdictClone))
	assert.NotEqual(t, Tips(core.VerdictSafe), Tips(core.VerdictWarning))
}
