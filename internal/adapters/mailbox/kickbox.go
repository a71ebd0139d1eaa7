package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/core"
)

var (
	// ErrMissingCredentials is returned when the provider has no API key configured
	ErrMissingCredentials = errors.New("mailbox provider: missing api key")
	// ErrProvider is returned when the provider answers with an error payload
	ErrProvider = errors.New("mailbox provider: request failed")
)

// kickboxResponse is the verification payload of a Kickbox-compatible API
type kickboxResponse struct {
	Result     string  `json:"result"`
	Reason     string  `json:"reason"`
	AcceptAll  bool    `json:"accept_all"`
	DidYouMean *string `json:"did_you_mean"`
	Success    bool    `json:"success"`
	Message    *string `json:"message"`
}

// KickboxClient classifies addresses through a Kickbox-compatible HTTP API
type KickboxClient struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// NewKickboxClient creates a new provider client
func NewKickboxClient(baseURL, apiKey string, timeout time.Duration, httpClient *http.Client, logger *zap.Logger) *KickboxClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &KickboxClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Name identifies the provider in verification results
func (c *KickboxClient) Name() string {
	return "kickbox"
}

// Classify submits an address for classification
func (c *KickboxClient) Classify(ctx context.Context, address string) (*core.MailboxClassification, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredentials
	}

	q := url.Values{}
	q.Set("email", address)
	q.Set("apikey", c.apiKey)
	if c.timeout > 0 {
		// The provider gives up on its own SMTP conversation a little before we do
		q.Set("timeout", strconv.FormatInt((c.timeout*3/4).Milliseconds(), 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/verify?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("making provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("reading provider response: %w", err)
	}

	var kr kickboxResponse
	if err := json.Unmarshal(body, &kr); err != nil {
		if resp.StatusCode/100 != 2 {
			return nil, fmt.Errorf("%w: status %s", ErrProvider, resp.Status)
		}
		return nil, fmt.Errorf("parsing provider response: %w", err)
	}
	if resp.StatusCode/100 != 2 || !kr.Success {
		msg := resp.Status
		if kr.Message != nil && *kr.Message != "" {
			msg = *kr.Message
		}
		return nil, fmt.Errorf("%w: %s", ErrProvider, msg)
	}

	c.logger.Debug("Mailbox provider classified address",
		zap.String("result", kr.Result),
		zap.String("reason", kr.Reason),
		zap.Bool("accept_all", kr.AcceptAll))

	classification := &core.MailboxClassification{
		Status:   MapStatus(kr.Result, kr.AcceptAll),
		CatchAll: kr.AcceptAll,
	}
	if kr.DidYouMean != nil {
		classification.Suggestion = *kr.DidYouMean
	}
	return classification, nil
}

// MapStatus converts a provider result string into a mailbox status
func MapStatus(result string, acceptAll bool) core.MailboxStatus {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "deliverable", "valid":
		return core.MailboxDeliverable
	case "undeliverable", "invalid":
		return core.MailboxUndeliverable
	case "catch-all", "catch_all", "accept_all", "accept-all":
		return core.MailboxCatchAll
	case "risky":
		if acceptAll {
			return core.MailboxCatchAll
		}
		return core.MailboxRisky
	default:
		return core.MailboxUnknown
	}
}
