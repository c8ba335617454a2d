// Package plex implements the LinkingService port against the Plex v1 PIN API.
package plex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/johnnycage/internal/domain/model"
	"github.com/ericfisherdev/johnnycage/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.LinkingService = (*Client)(nil)

const maxBodyBytes = 1 << 20

// ErrMalformedPin is returned when a PIN response lacks an id or code.
var ErrMalformedPin = errors.New("plex pin response missing id or code")

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	Op         string
	StatusCode int
	Snippet    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("plex %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Snippet)
}

// ClientConfig identifies this bot to Plex. The identifiers should stay stable
// across restarts so Plex shows a single device entry.
type ClientConfig struct {
	BaseURL  string
	ClientID string
	Product  string
	Version  string
	Device   string
	Platform string
}

// DefaultClientConfig returns the device identity the bot registers with.
func DefaultClientConfig(baseURL, clientID string) ClientConfig {
	return ClientConfig{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		ClientID: clientID,
		Product:  "JohnnyCageBot",
		Version:  "1.0",
		Device:   "DiscordBot",
		Platform: "Go",
	}
}

// Client implements driven.LinkingService over HTTP.
type Client struct {
	http   *http.Client
	cfg    ClientConfig
	logger *slog.Logger
}

// NewClient creates a Plex PIN client. A nil httpClient gets a 10s timeout client.
func NewClient(cfg ClientConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		http:   httpClient,
		cfg:    cfg,
		logger: logger.With("adapter", "plex"),
	}
}

// CreateSession creates a new PIN. Plex answers 201 Created on success.
// A missing expiry is reported as a zero ExpiresIn.
func (c *Client) CreateSession(ctx context.Context) (model.PinGrant, error) {
	body, status, err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/pins.xml")
	if err != nil {
		return model.PinGrant{}, fmt.Errorf("create pin: %w", err)
	}
	if status != http.StatusCreated {
		return model.PinGrant{}, &StatusError{Op: "create pin", StatusCode: status, Snippet: snippet(body)}
	}

	root, err := parseNode(body)
	if err != nil {
		return model.PinGrant{}, err
	}

	grant := model.PinGrant{
		ID:   firstField(root, idFields...),
		Code: firstField(root, codeFields...),
	}
	if grant.ID == "" || grant.Code == "" {
		return model.PinGrant{}, fmt.Errorf("%w: %s", ErrMalformedPin, snippet(body))
	}

	if raw := firstField(root, expiresInFields...); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			c.logger.Warn("ignoring unusable pin expiry", "expires_in", raw)
		} else {
			grant.ExpiresIn = time.Duration(secs) * time.Second
		}
	}

	return grant, nil
}

// PollSession checks a PIN. A 404 means Plex dropped the PIN and is reported as
// driven.ErrSessionGone.
func (c *Client) PollSession(ctx context.Context, sessionID string) (model.PinStatus, error) {
	endpoint := c.cfg.BaseURL + "/pins/" + url.PathEscape(sessionID) + ".xml"

	body, status, err := c.do(ctx, http.MethodGet, endpoint)
	if err != nil {
		return model.PinStatus{}, fmt.Errorf("check pin: %w", err)
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return model.PinStatus{}, driven.ErrSessionGone
	default:
		return model.PinStatus{}, &StatusError{Op: "check pin", StatusCode: status, Snippet: snippet(body)}
	}

	root, err := parseNode(body)
	if err != nil {
		return model.PinStatus{}, err
	}

	return model.PinStatus{Token: firstField(root, tokenFields...)}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("X-Plex-Product", c.cfg.Product)
	req.Header.Set("X-Plex-Version", c.cfg.Version)
	req.Header.Set("X-Plex-Client-Identifier", c.cfg.ClientID)
	req.Header.Set("X-Plex-Device", c.cfg.Device)
	req.Header.Set("X-Plex-Platform", c.cfg.Platform)
}

// snippet returns a single-line prefix of body for error messages.
func snippet(body []byte) string {
	s := strings.ReplaceAll(string(body), "\n", " ")
	if len(s) > 300 {
		s = s[:300]
	}
	return strings.TrimSpace(s)
}
