package core

import (
	"time"
)

// AuthValue is the outcome of a single authentication mechanism
type AuthValue string

const (
	AuthPass          AuthValue = "pass"
	AuthFail          AuthValue = "fail"
	AuthUnknown       AuthValue = "unknown"
	AuthNotApplicable AuthValue = "not-applicable"
)

// AuthSignals holds the SPF, DKIM and DMARC results found in a message
type AuthSignals struct {
	SPF   AuthValue `json:"spf"`
	DKIM  AuthValue `json:"dkim"`
	DMARC AuthValue `json:"dmarc"`
}

// NotApplicableAuth is used for formats that carry no header envelope
func NotApplicableAuth() AuthSignals {
	return AuthSignals{SPF: AuthNotApplicable, DKIM: AuthNotApplicable, DMARC: AuthNotApplicable}
}

// AnyFail reports whether any mechanism explicitly failed
func (a AuthSignals) AnyFail() bool {
	return a.SPF == AuthFail || a.DKIM == AuthFail || a.DMARC == AuthFail
}

// AnyPass reports whether any mechanism passed
func (a AuthSignals) AnyPass() bool {
	return a.SPF == AuthPass || a.DKIM == AuthPass || a.DMARC == AuthPass
}

// MessageKind is the format a message was extracted from
type MessageKind string

const (
	KindEML  MessageKind = "eml"
	KindMSG  MessageKind = "msg"
	KindHTML MessageKind = "html"
	KindText MessageKind = "text"
)

// NormalizedMessage is the common representation of an inspected message
type NormalizedMessage struct {
	Kind     MessageKind
	Subject  string
	From     string
	Date     string
	BodyText string
	BodyHTML string
	Auth     AuthSignals
}

// LinkDomain is a registrable domain found in a message's links
type LinkDomain struct {
	Domain string `json:"domain"`
	DNS    bool   `json:"dns"`
}

// Verdict is the categorical outcome of a message inspection
type Verdict string

const (
	VerdictSafe     Verdict = "safe"
	VerdictWarning  Verdict = "warning"
	VerdictPhishing Verdict = "phishing"
	VerdictClone    Verdict = "clone"
	VerdictSpam     Verdict = "spam"
)

// Assessment is the scorer's output for one message
type Assessment struct {
	Score   int
	Verdict Verdict
	IsClone bool
	Reasons []string
	Tips    []string
}

// MessageMeta is the display metadata of an inspected message
type MessageMeta struct {
	Subject string `json:"subject"`
	From    string `json:"from"`
	Date    string `json:"date"`
}

// InspectResult is the full result of a message inspection
type InspectResult struct {
	ID          string       `json:"id"`
	Kind        MessageKind  `json:"kind"`
	Meta        MessageMeta  `json:"meta"`
	Auth        AuthSignals  `json:"auth"`
	Links       []string     `json:"links"`
	LinkDomains []LinkDomain `json:"linkDomains"`
	Verdict     Verdict      `json:"verdict"`
	Score       int          `json:"score"`
	Reasons     []string     `json:"reasons"`
	Tips        []string     `json:"tips"`
}

// MXRecord is a mail exchanger for a domain
type MXRecord struct {
	Host     string `json:"exchange"`
	Priority uint16 `json:"priority"`
}

// DomainReputation is what the resolver knows about a domain
type DomainReputation struct {
	MX          []MXRecord
	Blocklisted bool
	Registered  *time.Time
}

// MailboxStatus is the mailbox classification of an address
type MailboxStatus string

const (
	MailboxDeliverable   MailboxStatus = "deliverable"
	MailboxUndeliverable MailboxStatus = "undeliverable"
	MailboxRisky         MailboxStatus = "risky"
	MailboxCatchAll      MailboxStatus = "catch-all"
	MailboxUnknown       MailboxStatus = "unknown"
)

// MailboxClassification is returned by a mailbox-classification provider
type MailboxClassification struct {
	Status     MailboxStatus
	CatchAll   bool
	Suggestion string
}

// TrustList is the tri-state trust classification of an address
type TrustList string

const (
	ListWhite TrustList = "whitelist"
	ListGrey  TrustList = "greylist"
	ListBlack TrustList = "blacklist"
)

// Confidence expresses how certain an address verdict is
type Confidence struct {
	Score   int    `json:"score"`
	Band    string `json:"band"`
	AgeDays int    `json:"ageDays"`
}

// AddressVerdict is the trust decision for an address
type AddressVerdict struct {
	List       TrustList  `json:"list"`
	SafeToSend bool       `json:"safeToSend"`
	Strict     bool       `json:"strict"`
	Confidence Confidence `json:"confidence"`
}

// MailboxInfo is the mailbox section of a verification result
type MailboxInfo struct {
	Status     MailboxStatus `json:"status"`
	CatchAll   bool          `json:"catchAll"`
	Suggestion string        `json:"suggestion,omitempty"`
}

// BlocklistInfo is the blocklist section of a verification result
type BlocklistInfo struct {
	Listed bool   `json:"listed"`
	Zone   string `json:"zone"`
}

// WhoisInfo is the registration section of a verification result
type WhoisInfo struct {
	Created string `json:"created"`
}

// VerifyResult is the full result of an address verification
type VerifyResult struct {
	Source   string         `json:"source"`
	Input    string         `json:"input"`
	FormatOK bool           `json:"formatOK"`
	Domain   string         `json:"domain"`
	HasMX    bool           `json:"hasMX"`
	MX       []MXRecord     `json:"mx"`
	Mailbox  MailboxInfo    `json:"mailbox"`
	DBL      BlocklistInfo  `json:"dbl"`
	Whois    WhoisInfo      `json:"whois"`
	Verdict  AddressVerdict `json:"verdict"`
	Notes    []string       `json:"notes"`
}
