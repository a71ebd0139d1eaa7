package reputation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/core"
)

var errNotFound = fmt.Errorf("fake dns: %w", core.ErrRecordNotFound)

type fakeDNS struct {
	mu    sync.Mutex
	mx    map[string][]*net.MX
	a     map[string][]net.IP
	delay map[string]time.Duration
	calls []string
}

func (f *fakeDNS) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeDNS) wait(ctx context.Context, name string) error {
	if d := f.delay[name]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *fakeDNS) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	f.record("mx " + domain)
	if err := f.wait(ctx, "mx "+domain); err != nil {
		return nil, err
	}
	if mx, ok := f.mx[domain]; ok {
		return mx, nil
	}
	return nil, errNotFound
}

func (f *fakeDNS) LookupA(ctx context.Context, name string) ([]net.IP, error) {
	f.record("a " + name)
	if err := f.wait(ctx, "a "+name); err != nil {
		return nil, err
	}
	if ips, ok := f.a[name]; ok {
		return ips, nil
	}
	return nil, errNotFound
}

type fakeRDAP struct {
	dates map[string]time.Time
}

func (f fakeRDAP) RegistrationDate(ctx context.Context, domain string) (time.Time, error) {
	if t, ok := f.dates[domain]; ok {
		return t, nil
	}
	return time.Time{}, errors.New("rdap unavailable")
}

type fakeWhois struct {
	dates map[string]time.Time
	calls int
}

func (f *fakeWhois) CreationDate(ctx context.Context, domain string) (time.Time, error) {
	f.calls++
	if t, ok := f.dates[domain]; ok {
		return t, nil
	}
	return time.Time{}, errors.New("whois: creation date not found")
}

var shortTimeouts = Timeouts{
	MX:    100 * time.Millisecond,
	A:     100 * time.Millisecond,
	DBL:   100 * time.Millisecond,
	RDAP:  100 * time.Millisecond,
	Whois: 100 * time.Millisecond,
}

func TestResolver_MX(t *testing.T) {
	dns := &fakeDNS{
		mx: map[string][]*net.MX{"example.com": {{Host: "mx1.example.com.", Pref: 10}}},
		a:  map[string][]net.IP{"a-only.example": {net.IPv4(192, 0, 2, 1)}},
	}
	r := NewResolver(dns, nil, nil, "", shortTimeouts, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, []core.MXRecord{{Host: "mx1.example.com", Priority: 10}}, r.MX(ctx, "example.com"))
	assert.Equal(t, []core.MXRecord{{Host: "a-only.example", Priority: 0}}, r.MX(ctx, "a-only.example"),
		"an A record stands in as implicit MX")
	assert.Empty(t, r.MX(ctx, "nothing.example"))

	assert.True(t, r.HasDNS(ctx, "A-Only.Example."))
	assert.False(t, r.HasDNS(ctx, "nothing.example"))
}

func TestResolver_MXOrderedByPriority(t *testing.T) {
	dns := &fakeDNS{mx: map[string][]*net.MX{"example.com": {
		{Host: "backup.example.com.", Pref: 20},
		{Host: "mx2.example.com.", Pref: 10},
		{Host: "mx1.example.com.", Pref: 10},
	}}}
	r := NewResolver(dns, nil, nil, "", shortTimeouts, zap.NewNop())

	assert.Equal(t, []core.MXRecord{
		{Host: "mx1.example.com", Priority: 10},
		{Host: "mx2.example.com", Priority: 10},
		{Host: "backup.example.com", Priority: 20},
	}, r.MX(context.Background(), "example.com"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(errNotFound))
	assert.True(t, isNotFound(&net.DNSError{Err: "no such host", IsNotFound: true}))
	assert.False(t, isNotFound(errors.New("lookup failed: host not found in cache")))
}

func TestResolver_MXFallsBackAfterTimeout(t *testing.T) {
	dns := &fakeDNS{
		mx:    map[string][]*net.MX{"slow.example": {{Host: "mx.slow.example", Pref: 1}}},
		a:     map[string][]net.IP{"slow.example": {net.IPv4(192, 0, 2, 7)}},
		delay: map[string]time.Duration{"mx slow.example": time.Second},
	}
	r := NewResolver(dns, nil, nil, "", shortTimeouts, zap.NewNop())

	start := time.Now()
	got := r.MX(context.Background(), "slow.example")

	assert.Equal(t, []core.MXRecord{{Host: "slow.example", Priority: 0}}, got)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestResolver_Blocklisted(t *testing.T) {
	dns := &fakeDNS{a: map[string][]net.IP{
		"spammy.example.dbl.test": {net.IPv4(127, 0, 1, 2)},
	}}
	r := NewResolver(dns, nil, nil, ".DBL.test.", shortTimeouts, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, "dbl.test", r.BlocklistZone())
	assert.True(t, r.Blocklisted(ctx, "spammy.example"))
	assert.False(t, r.Blocklisted(ctx, "clean.example"))

	noZone := NewResolver(dns, nil, nil, "", shortTimeouts, zap.NewNop())
	assert.False(t, noZone.Blocklisted(ctx, "spammy.example"))
}

func TestResolver_RegistrationDateChain(t *testing.T) {
	rdapDate := time.Date(1995, 8, 14, 0, 0, 0, 0, time.UTC)
	whoisDate := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

	whois := &fakeWhois{dates: map[string]time.Time{
		"example.com": whoisDate,
		"whois.only":  whoisDate,
	}}
	r := NewResolver(&fakeDNS{}, fakeRDAP{dates: map[string]time.Time{"example.com": rdapDate}}, whois, "", shortTimeouts, zap.NewNop())
	ctx := context.Background()

	got := r.RegistrationDate(ctx, "example.com")
	require.NotNil(t, got)
	assert.Equal(t, rdapDate, *got)
	assert.Equal(t, 0, whois.calls, "WHOIS is not consulted when RDAP answers")

	got = r.RegistrationDate(ctx, "whois.only")
	require.NotNil(t, got)
	assert.Equal(t, whoisDate, *got)

	assert.Nil(t, r.RegistrationDate(ctx, "unknown.example"))

	bare := NewResolver(&fakeDNS{}, nil, nil, "", shortTimeouts, zap.NewNop())
	assert.Nil(t, bare.RegistrationDate(ctx, "example.com"))
}

func TestResolver_ResolveRunsStepsConcurrently(t *testing.T) {
	dns := &fakeDNS{
		mx: map[string][]*net.MX{"example.com": {{Host: "mx.example.com", Pref: 5}}},
		a:  map[string][]net.IP{"example.com.dbl.test": {net.IPv4(127, 0, 1, 2)}},
		delay: map[string]time.Duration{
			"mx example.com":         80 * time.Millisecond,
			"a example.com.dbl.test": 80 * time.Millisecond,
		},
	}
	created := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewResolver(dns, fakeRDAP{dates: map[string]time.Time{"example.com": created}}, nil, "dbl.test", shortTimeouts, zap.NewNop())

	start := time.Now()
	rep := r.Resolve(context.Background(), " Example.COM ")
	elapsed := time.Since(start)

	assert.Equal(t, []core.MXRecord{{Host: "mx.example.com", Priority: 5}}, rep.MX)
	assert.True(t, rep.Blocklisted)
	require.NotNil(t, rep.Registered)
	assert.Equal(t, created, *rep.Registered)
	assert.Less(t, elapsed, 150*time.Millisecond, "independent steps should overlap")
}

func TestResolver_ResolveEmptyDomain(t *testing.T) {
	dns := &fakeDNS{}
	r := NewResolver(dns, nil, nil, "dbl.test", shortTimeouts, zap.NewNop())

	rep := r.Resolve(context.Background(), "")

	assert.Empty(t, rep.MX)
	assert.False(t, rep.Blocklisted)
	assert.Nil(t, rep.Registered)
	assert.Empty(t, dns.calls)
}
