// Package rdap looks up domain registration dates through RDAP.
package rdap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNoRegistration is returned when the response has no registration event
	ErrNoRegistration = errors.New("rdap: registration date not found")
	// ErrNoDomain is returned when the registry does not know the domain
	ErrNoDomain = errors.New("rdap: domain not found in registry")
)

// Domain is the part of an RDAP domain object we use
type Domain struct {
	LDHName string  `json:"ldhName"`
	Events  []Event `json:"events"`
}

// Event is a historic or future change to the domain
type Event struct {
	EventAction string `json:"eventAction"`
	EventDate   string `json:"eventDate"`
}

// Client queries an RDAP service for domain objects
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for an RDAP base URL such as https://rdap.org/domain/
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// RegistrationDate returns the registration or creation date of a domain
func (c *Client) RegistrationDate(ctx context.Context, domain string) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+strings.ToLower(domain), nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("making rdap request: %w", err)
	}
	req.Header.Add("Accept", "application/rdap+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("rdap get request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("Failed to close rdap response body", zap.Error(err))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return time.Time{}, ErrNoDomain
	case resp.StatusCode/100 != 2:
		return time.Time{}, fmt.Errorf("rdap: status %q, expected 200 ok", resp.Status)
	}

	var d Domain
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&d); err != nil {
		return time.Time{}, fmt.Errorf("parsing rdap response: %w", err)
	}

	return RegistrationEvent(d.Events)
}

// RegistrationEvent picks the creation date from a list of RDAP events.
// The first "registration" event wins; a generic "creat..." event is used
// only when no registration event exists.
func RegistrationEvent(events []Event) (time.Time, error) {
	for _, match := range []string{"registration", "creat"} {
		for _, ev := range events {
			if !strings.Contains(strings.ToLower(ev.EventAction), match) {
				continue
			}
			if t, err := parseEventDate(ev.EventDate); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, ErrNoRegistration
}

func parseEventDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("rdap: unrecognized event date %q", s)
}
