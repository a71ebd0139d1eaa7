package brand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/whitelist"
)

func newEngine() *Engine {
	return NewEngine(whitelist.NewChecker(whitelist.DefaultBrandDomains, zap.NewNop()), DefaultLookalikeDistance, zap.NewNop())
}

func TestEngine_SameBrand(t *testing.T) {
	e := newEngine()

	assert.True(t, e.SameBrand("ebay.com", "ebay.com"))
	assert.True(t, e.SameBrand("ebay.com", "signin.ebay.co.uk"))
	assert.False(t, e.SameBrand("ebay.com", "ebaystatic.com"))
	assert.False(t, e.SameBrand("paypa1.com", "paypal.com"))
	assert.False(t, e.SameBrand("", "paypal.com"))
	assert.False(t, e.SameBrand("192.0.2.1", "192.168.9.9"))
	assert.True(t, e.SameBrand("192.0.2.1", "192.0.2.1"))
}

func TestEngine_Aligned(t *testing.T) {
	e := newEngine()

	assert.True(t, e.Aligned("ebay.com", "ebay.co.uk"))
	assert.True(t, e.Aligned("ebay.com", "ebaystatic.com"))
	assert.False(t, e.Aligned("paypal.com", "ebaystatic.com"))
	assert.False(t, e.Aligned("ebay.com", "evil.example"))
	assert.False(t, e.Aligned("192.0.2.1", "192.168.9.9"))

	bare := NewEngine(nil, DefaultLookalikeDistance, zap.NewNop())
	assert.False(t, bare.Aligned("ebay.com", "ebaystatic.com"))
}

func TestEngine_IsLookalike(t *testing.T) {
	e := newEngine()

	assert.True(t, e.IsLookalike("paypa1.com", "paypal.com"))
	assert.True(t, e.IsLookalike("rnicrosoft.com", "microsoft.com"))
	assert.False(t, e.IsLookalike("ebay.com", "ebay.co.uk"), "same brand is not a lookalike")
	assert.False(t, e.IsLookalike("paypal.com", "example.org"))

	strict := NewEngine(nil, 0, zap.NewNop())
	assert.False(t, strict.IsLookalike("paypa1.com", "paypal.com"))
}
