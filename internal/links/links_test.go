package links

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRegistrableDomain(t *testing.T) {
	tests := map[string]string{
		"signin.ebay.co.uk":  "ebay.co.uk",
		"WWW.PayPal.com.":    "paypal.com",
		"example.com:8443":   "example.com",
		"192.0.2.10":         "192.0.2.10",
		"[2001:db8::1]:443":  "2001:db8::1",
		"deep.a.b.github.io": "b.github.io",
		"":                   "",
	}

	for host, want := range tests {
		t.Run(host, func(t *testing.T) {
			assert.Equal(t, want, RegistrableDomain(host))
		})
	}
}

func TestRootLabel(t *testing.T) {
	assert.Equal(t, "ebay", RootLabel("pages.ebay.co.uk"))
	assert.Equal(t, "paypa1", RootLabel("paypa1.com"))
	assert.Empty(t, RootLabel("192.0.2.1"))
	assert.Empty(t, RootLabel("[2001:db8::1]"))
}

func TestAddressDomain(t *testing.T) {
	assert.Equal(t, "ebay.com", AddressDomain("alerts@EBay.com"))
	assert.Equal(t, "paypa1.com", AddressDomain("PayPal Support <support@paypa1.com>"))
	assert.Equal(t, "", AddressDomain("no-at-sign"))
}

func TestExtractor_Extract(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	text := "Sign in at https://signin.ebay.co.uk/ws?x=1, or www.ebaystatic.com/img. " +
		"Write to help@ebay.com or visit ebay.com. Also ftp://files.example.org/x and " +
		"https://signin.ebay.co.uk/ws?x=1 again."
	html := `<p><a href="https://pages.ebay.com/help">Help</a>
		<a href="mailto:help@ebay.com">Mail</a>
		<a href="/relative">Rel</a>
		<a href=" HTTP://Evil.Example.net/login ">Login</a></p>`

	links, domains := e.Extract(text, html)

	assert.Equal(t, []string{
		"https://signin.ebay.co.uk/ws?x=1",
		"http://www.ebaystatic.com/img",
		"https://pages.ebay.com/help",
		"http://Evil.Example.net/login",
	}, links)
	assert.Equal(t, []string{"ebay.co.uk", "ebaystatic.com", "ebay.com", "example.net"}, domains)
}

func TestExtractor_NoLinks(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	links, domains := e.Extract("You are a WINNER! Claim now your free gift card!", "")

	assert.Empty(t, links)
	assert.Empty(t, domains)
}
