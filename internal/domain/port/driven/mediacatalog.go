package driven

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/johnnycage/internal/domain/model"
)

var (
	// ErrMediaNotFound means the TMDb id is neither a movie nor a TV show.
	ErrMediaNotFound = errors.New("media not found as movie or tv")

	// ErrCatalogUnavailable means the request service could not be reached or
	// answered with a server error.
	ErrCatalogUnavailable = errors.New("media request service unavailable")
)

// RequestError carries a non-success response to a media request submission.
type RequestError struct {
	StatusCode int
	Detail     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("media request rejected (status %d): %s", e.StatusCode, e.Detail)
}

// MediaCatalog defines the driven port for the Overseerr REST API.
type MediaCatalog interface {
	Search(ctx context.Context, query string) ([]model.SearchResult, error)

	// ResolveMediaType probes the movie and then the tv endpoint for tmdbID.
	ResolveMediaType(ctx context.Context, tmdbID int) (model.MediaType, error)

	// Submit files a request. A duplicate request returns
	// RequestStatusAlreadyRequested without an error.
	Submit(ctx context.Context, mediaType model.MediaType, tmdbID int) (model.RequestResult, error)
}
