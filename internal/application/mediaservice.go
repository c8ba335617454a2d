package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/johnnycage/internal/domain/model"
	"github.com/ericfisherdev/johnnycage/internal/domain/port/driven"
)

// ErrNotLinked is returned by Request when the user has no stored Plex token.
var ErrNotLinked = errors.New("plex account not linked")

// ErrEmptyQuery is returned by Search for a blank query.
var ErrEmptyQuery = errors.New("search query is empty")

// MediaService provides Overseerr search and request use cases. It depends
// only on port interfaces.
type MediaService struct {
	catalog     driven.MediaCatalog
	store       driven.CredentialStore
	resultLimit int
	logger      *slog.Logger
}

// NewMediaService creates a new MediaService. resultLimit caps Search results;
// zero or less returns everything.
func NewMediaService(catalog driven.MediaCatalog, store driven.CredentialStore, resultLimit int, logger *slog.Logger) *MediaService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaService{
		catalog:     catalog,
		store:       store,
		resultLimit: resultLimit,
		logger:      logger,
	}
}

// Search returns the top results for query.
func (s *MediaService) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	results, err := s.catalog.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search media: %w", err)
	}
	if s.resultLimit > 0 && len(results) > s.resultLimit {
		results = results[:s.resultLimit]
	}

	s.logger.Debug("media search", "results", len(results))
	return results, nil
}

// Request files a request for tmdbID on behalf of userID. The user must have
// linked a Plex account. The media type is resolved by probing movie then tv.
func (s *MediaService) Request(ctx context.Context, userID string, tmdbID int) (model.RequestResult, error) {
	linked, err := s.store.IsLinked(ctx, userID)
	if err != nil {
		return model.RequestResult{}, fmt.Errorf("check link for %s: %w", userID, err)
	}
	if !linked {
		return model.RequestResult{}, ErrNotLinked
	}

	mediaType, err := s.catalog.ResolveMediaType(ctx, tmdbID)
	if err != nil {
		return model.RequestResult{}, fmt.Errorf("resolve media type: %w", err)
	}

	res, err := s.catalog.Submit(ctx, mediaType, tmdbID)
	if err != nil {
		return model.RequestResult{}, fmt.Errorf("submit %s %d: %w", mediaType, tmdbID, err)
	}

	s.logger.Info("media requested",
		"user_id", userID,
		"tmdb_id", tmdbID,
		"media_type", mediaType,
		"status", res.Status,
	)
	return res, nil
}
