// Package links pulls http(s) links out of message bodies and reduces them
// to registrable domains.
package links

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"mvdan.cc/xurls/v2"
)

// Extractor implements core.LinkExtractor
type Extractor struct {
	grammar *regexp.Regexp
	logger  *zap.Logger
}

// NewExtractor creates a new link extractor
func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{
		grammar: xurls.Relaxed(),
		logger:  logger,
	}
}

// Extract returns the deduplicated http(s) links found in text and in the
// anchors of html, along with their deduplicated registrable domains.
func (e *Extractor) Extract(text, html string) ([]string, []string) {
	seen := make(map[string]bool)
	var links []string
	add := func(candidate string) {
		u, ok := parseLink(candidate)
		if !ok {
			return
		}
		s := u.String()
		if seen[s] {
			return
		}
		seen[s] = true
		links = append(links, s)
	}

	for _, m := range e.grammar.FindAllString(text, -1) {
		if !strings.Contains(m, "://") {
			// Bare domains and addresses are too noisy; only www. hosts are promoted
			if !strings.HasPrefix(strings.ToLower(m), "www.") {
				continue
			}
			m = "http://" + m
		}
		add(m)
	}

	for _, href := range e.hrefs(html) {
		add(href)
	}

	seenDomain := make(map[string]bool)
	var domains []string
	for _, l := range links {
		u, _ := url.Parse(l)
		d := RegistrableDomain(u.Hostname())
		if d == "" || seenDomain[d] {
			continue
		}
		seenDomain[d] = true
		domains = append(domains, d)
	}

	if e.logger != nil && len(links) > 0 {
		e.logger.Debug("Extracted links",
			zap.Int("links", len(links)),
			zap.Strings("domains", domains))
	}

	return links, domains
}

func (e *Extractor) hrefs(html string) []string {
	if strings.TrimSpace(html) == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		if e.logger != nil {
			e.logger.Debug("Failed to parse HTML for links", zap.Error(err))
		}
		return nil
	}

	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(strings.ToLower(href), "mailto:") {
			return
		}
		out = append(out, href)
	})
	return out
}

func parseLink(candidate string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(candidate))
	if err != nil {
		return nil, false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, false
	}
	if u.Hostname() == "" {
		return nil, false
	}
	u.Scheme = scheme
	return u, true
}

// RegistrableDomain reduces a host to its domain plus public suffix, e.g.
// "signin.ebay.co.uk" to "ebay.co.uk". IP literals and hosts without a
// registrable part are returned as-is, lowercased.
func RegistrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[].")
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}

	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// RootLabel is the leftmost label of the registrable domain of host.
// IP literals have none.
func RootLabel(host string) string {
	d := RegistrableDomain(host)
	if net.ParseIP(d) != nil {
		return ""
	}
	if i := strings.IndexByte(d, '.'); i >= 0 {
		return d[:i]
	}
	return d
}

// AddressDomain returns the lowercased domain part of an email address
func AddressDomain(address string) string {
	address = strings.TrimSpace(address)
	if i := strings.LastIndexByte(address, '<'); i >= 0 {
		address = strings.TrimSuffix(address[i+1:], ">")
	}
	i := strings.LastIndexByte(address, '@')
	if i < 0 {
		return ""
	}
	return strings.Trim(strings.ToLower(address[i+1:]), ". >")
}
