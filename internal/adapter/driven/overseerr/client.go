// Package overseerr implements the MediaCatalog port against the Overseerr REST API.
package overseerr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/johnnycage/internal/domain/model"
	"github.com/ericfisherdev/johnnycage/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MediaCatalog = (*Client)(nil)

const maxBodyBytes = 1 << 20

// Client implements driven.MediaCatalog over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewClient creates an Overseerr client with the following transport stack:
//  1. httpcache (ETag/Cache-Control aware caching of search and media lookups)
//  2. net/http default transport
//
// POST requests bypass the cache.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	httpClient := &http.Client{
		Transport: httpcache.NewMemoryCacheTransport(),
		Timeout:   15 * time.Second,
	}
	return NewClientWithHTTPClient(httpClient, baseURL, apiKey, logger)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger.With("adapter", "overseerr"),
	}
}

type searchResponse struct {
	Results []searchItem `json:"results"`
}

type searchItem struct {
	ID           int    `json:"id"`
	MediaType    string `json:"mediaType"`
	Title        string `json:"title"`
	Name         string `json:"name"`
	ReleaseDate  string `json:"releaseDate"`
	FirstAirDate string `json:"firstAirDate"`
	Overview     string `json:"overview"`
}

// Search queries Overseerr and returns results in the order Overseerr ranks them.
func (c *Client) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	// Overseerr rejects '+' for spaces in the query string.
	endpoint := c.baseURL + "/api/v1/search?query=" + strings.ReplaceAll(url.QueryEscape(query), "+", "%20")

	body, status, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w: %w", query, driven.ErrCatalogUnavailable, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("search %q: %w: status %d", query, driven.ErrCatalogUnavailable, status)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]model.SearchResult, 0, len(resp.Results))
	for _, item := range resp.Results {
		results = append(results, mapSearchItem(item))
	}
	return results, nil
}

func mapSearchItem(item searchItem) model.SearchResult {
	title := item.Title
	if title == "" {
		title = item.Name
	}

	date := item.FirstAirDate
	if date == "" {
		date = item.ReleaseDate
	}
	year := "?"
	if y, _, _ := strings.Cut(date, "-"); y != "" {
		year = y
	}

	return model.SearchResult{
		TMDbID:      item.ID,
		Title:       title,
		MediaType:   item.MediaType,
		ReleaseYear: year,
		Overview:    item.Overview,
	}
}

// ResolveMediaType probes the movie endpoint and then the tv endpoint. A 404 from
// both yields driven.ErrMediaNotFound; transport failures and other statuses
// yield driven.ErrCatalogUnavailable.
func (c *Client) ResolveMediaType(ctx context.Context, tmdbID int) (model.MediaType, error) {
	for _, mt := range []model.MediaType{model.MediaTypeMovie, model.MediaTypeTV} {
		endpoint := fmt.Sprintf("%s/api/v1/%s/%d", c.baseURL, mt, tmdbID)

		_, status, err := c.do(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return "", fmt.Errorf("probe %s %d: %w: %w", mt, tmdbID, driven.ErrCatalogUnavailable, err)
		}

		switch status {
		case http.StatusOK:
			return mt, nil
		case http.StatusNotFound:
			c.logger.Debug("media probe miss", "media_type", mt, "tmdb_id", tmdbID)
			continue
		default:
			return "", fmt.Errorf("probe %s %d: %w: status %d", mt, tmdbID, driven.ErrCatalogUnavailable, status)
		}
	}

	return "", fmt.Errorf("tmdb id %d: %w", tmdbID, driven.ErrMediaNotFound)
}

type requestBody struct {
	MediaType model.MediaType `json:"mediaType"`
	MediaID   int             `json:"mediaId"`
	Seasons   string          `json:"seasons,omitempty"`
}

// Submit files a media request. 201 is a new request, 409 an existing one.
// Any other status returns a *driven.RequestError carrying Overseerr's message.
func (c *Client) Submit(ctx context.Context, mediaType model.MediaType, tmdbID int) (model.RequestResult, error) {
	payload := requestBody{MediaType: mediaType, MediaID: tmdbID}
	if mediaType == model.MediaTypeTV {
		payload.Seasons = "all"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return model.RequestResult{}, fmt.Errorf("encode request: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/v1/request", data)
	if err != nil {
		return model.RequestResult{}, fmt.Errorf("submit request %d: %w: %w", tmdbID, driven.ErrCatalogUnavailable, err)
	}

	result := model.RequestResult{TMDbID: tmdbID, MediaType: mediaType}
	switch status {
	case http.StatusCreated:
		result.Status = model.RequestStatusCreated
		return result, nil
	case http.StatusConflict:
		result.Status = model.RequestStatusAlreadyRequested
		return result, nil
	default:
		return model.RequestResult{}, &driven.RequestError{StatusCode: status, Detail: errorDetail(body)}
	}
}

// errorDetail prefers Overseerr's JSON "message" and falls back to the first
// 200 bytes of the raw body.
func errorDetail(body []byte) string {
	var msg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &msg); err == nil && msg.Message != "" {
		return msg.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}

	c.logger.Debug("overseerr call",
		"method", method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"cached", resp.Header.Get(httpcache.XFromCache) == "1",
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return body, resp.StatusCode, nil
}
