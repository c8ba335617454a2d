package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/johnnycage/internal/application"
	"github.com/ericfisherdev/johnnycage/internal/domain/model"
	"github.com/ericfisherdev/johnnycage/internal/domain/port/driven"
)

type fakeCatalog struct {
	results    []model.SearchResult
	searchErr  error
	mediaType  model.MediaType
	resolveErr error
	submitErr  error
	status     model.RequestStatus

	queries   []string
	submitted []model.MediaType
	resolved  int
}

func (f *fakeCatalog) Search(_ context.Context, query string) ([]model.SearchResult, error) {
	f.queries = append(f.queries, query)
	return f.results, f.searchErr
}

func (f *fakeCatalog) ResolveMediaType(_ context.Context, _ int) (model.MediaType, error) {
	f.resolved++
	return f.mediaType, f.resolveErr
}

func (f *fakeCatalog) Submit(_ context.Context, mediaType model.MediaType, tmdbID int) (model.RequestResult, error) {
	f.submitted = append(f.submitted, mediaType)
	if f.submitErr != nil {
		return model.RequestResult{}, f.submitErr
	}
	return model.RequestResult{TMDbID: tmdbID, MediaType: mediaType, Status: f.status}, nil
}

func searchResults(n int) []model.SearchResult {
	out := make([]model.SearchResult, n)
	for i := range out {
		out[i] = model.SearchResult{TMDbID: i + 1, Title: "t", MediaType: "movie", ReleaseYear: "2000"}
	}
	return out
}

func TestSearch_LimitsResults(t *testing.T) {
	catalog := &fakeCatalog{results: searchResults(8)}
	svc := application.NewMediaService(catalog, newFakeStore(), 5, nil)

	results, err := svc.Search(t.Context(), "  matrix ")
	require.NoError(t, err)

	assert.Len(t, results, 5)
	assert.Equal(t, 1, results[0].TMDbID)
	assert.Equal(t, []string{"matrix"}, catalog.queries)
}

func TestSearch_FewerThanLimit(t *testing.T) {
	svc := application.NewMediaService(&fakeCatalog{results: searchResults(2)}, newFakeStore(), 5, nil)

	results, err := svc.Search(t.Context(), "x")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_EmptyQuery(t *testing.T) {
	catalog := &fakeCatalog{}
	svc := application.NewMediaService(catalog, newFakeStore(), 5, nil)

	_, err := svc.Search(t.Context(), "   ")
	require.ErrorIs(t, err, application.ErrEmptyQuery)
	assert.Empty(t, catalog.queries)
}

func TestSearch_CatalogError(t *testing.T) {
	svc := application.NewMediaService(&fakeCatalog{searchErr: driven.ErrCatalogUnavailable}, newFakeStore(), 5, nil)

	_, err := svc.Search(t.Context(), "x")
	require.ErrorIs(t, err, driven.ErrCatalogUnavailable)
}

func TestRequest_RequiresLink(t *testing.T) {
	catalog := &fakeCatalog{mediaType: model.MediaTypeMovie}
	svc := application.NewMediaService(catalog, newFakeStore(), 5, nil)

	_, err := svc.Request(t.Context(), testUser, 603)
	require.ErrorIs(t, err, application.ErrNotLinked)
	assert.Zero(t, catalog.resolved)
	assert.Empty(t, catalog.submitted)
}

func TestRequest_Submits(t *testing.T) {
	tests := []struct {
		name   string
		media  model.MediaType
		status model.RequestStatus
	}{
		{name: "movie created", media: model.MediaTypeMovie, status: model.RequestStatusCreated},
		{name: "tv duplicate", media: model.MediaTypeTV, status: model.RequestStatusAlreadyRequested},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.tokens[testUser] = "T1"
			catalog := &fakeCatalog{mediaType: tt.media, status: tt.status}
			svc := application.NewMediaService(catalog, store, 5, nil)

			res, err := svc.Request(t.Context(), testUser, 603)
			require.NoError(t, err)

			assert.Equal(t, model.RequestResult{TMDbID: 603, MediaType: tt.media, Status: tt.status}, res)
			assert.Equal(t, []model.MediaType{tt.media}, catalog.submitted)
		})
	}
}

func TestRequest_Errors(t *testing.T) {
	reqErr := &driven.RequestError{StatusCode: 403, Detail: "quota"}

	tests := []struct {
		name    string
		catalog *fakeCatalog
		store   func(*fakeStore)
		wantErr error
	}{
		{
			name:    "not found",
			catalog: &fakeCatalog{resolveErr: driven.ErrMediaNotFound},
			wantErr: driven.ErrMediaNotFound,
		},
		{
			name:    "catalog unavailable",
			catalog: &fakeCatalog{resolveErr: driven.ErrCatalogUnavailable},
			wantErr: driven.ErrCatalogUnavailable,
		},
		{
			name:    "rejected",
			catalog: &fakeCatalog{mediaType: model.MediaTypeMovie, submitErr: reqErr},
			wantErr: reqErr,
		},
		{
			name:    "storage unavailable",
			catalog: &fakeCatalog{},
			store:   func(s *fakeStore) { s.lookupErr = driven.ErrStorageUnavailable },
			wantErr: driven.ErrStorageUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.tokens[testUser] = "T1"
			if tt.store != nil {
				tt.store(store)
			}
			svc := application.NewMediaService(tt.catalog, store, 5, nil)

			_, err := svc.Request(t.Context(), testUser, 42)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("request error is inspectable", func(t *testing.T) {
		store := newFakeStore()
		store.tokens[testUser] = "T1"
		svc := application.NewMediaService(&fakeCatalog{mediaType: model.MediaTypeTV, submitErr: reqErr}, store, 5, nil)

		_, err := svc.Request(t.Context(), testUser, 42)
		var got *driven.RequestError
		require.True(t, errors.As(err, &got))
		assert.Equal(t, "quota", got.Detail)
	})
}
