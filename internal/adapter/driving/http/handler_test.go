package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ericfisherdev/johnnycage/internal/adapter/driving/http"
	"github.com/ericfisherdev/johnnycage/internal/application"
	"github.com/ericfisherdev/johnnycage/internal/domain/model"
	"github.com/ericfisherdev/johnnycage/internal/domain/port/driven"
	"github.com/ericfisherdev/johnnycage/internal/observability"
)

// --- Mock implementations ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockStore struct {
	rec *model.CredentialRecord
	err error
}

func (m *mockStore) Save(_ context.Context, _, _ string) error { return nil }
func (m *mockStore) Get(_ context.Context, _ string) (string, bool, error) {
	return "", false, nil
}
func (m *mockStore) IsLinked(_ context.Context, _ string) (bool, error) { return false, nil }
func (m *mockStore) Lookup(_ context.Context, _ string) (*model.CredentialRecord, error) {
	return m.rec, m.err
}
func (m *mockStore) Delete(_ context.Context, _ string) error { return nil }

// blockingLinker never issues a PIN until the attempt is canceled.
type blockingLinker struct{}

func (blockingLinker) CreateSession(ctx context.Context) (model.PinGrant, error) {
	<-ctx.Done()
	return model.PinGrant{}, ctx.Err()
}

func (blockingLinker) PollSession(_ context.Context, _ string) (model.PinStatus, error) {
	return model.PinStatus{}, nil
}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupMux(t *testing.T, pinger *mockPinger, store *mockStore) (http.Handler, *application.LinkService) {
	t.Helper()
	links := application.NewLinkService(blockingLinker{}, nil, store, application.LinkConfig{
		PollInterval: time.Second,
		DefaultTTL:   time.Minute,
	})

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	metrics.RecordCommand("help", "ok", time.Millisecond)

	h := httphandler.NewHandler(pinger, links, discardLogger())
	return httphandler.NewServeMux(h, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), discardLogger()), links
}

func doRequest(t *testing.T, mux http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestHealth(t *testing.T) {
	mux, _ := setupMux(t, &mockPinger{}, &mockStore{})

	rec := doRequest(t, mux, "/api/v1/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body httphandler.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Database)
	_, err := time.Parse(time.RFC3339, body.Time)
	assert.NoError(t, err)
}

func TestHealth_DatabaseDown(t *testing.T) {
	mux, _ := setupMux(t, &mockPinger{err: errors.New("database is closed")}, &mockStore{})

	rec := doRequest(t, mux, "/api/v1/health")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body httphandler.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "unreachable", body.Database)
}

func TestGetLink_Linked(t *testing.T) {
	linkedAt := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	store := &mockStore{rec: &model.CredentialRecord{
		ID:            "row-1",
		DiscordUserID: "123456789012345678",
		Linked:        true,
		LinkedAt:      &linkedAt,
		CreatedAt:     linkedAt.Add(-time.Hour),
		UpdatedAt:     linkedAt,
	}}
	mux, _ := setupMux(t, &mockPinger{}, store)

	rec := doRequest(t, mux, "/api/v1/links/123456789012345678")

	require.Equal(t, http.StatusOK, rec.Code)
	var body httphandler.LinkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "123456789012345678", body.DiscordUserID)
	assert.True(t, body.Linked)
	assert.False(t, body.Pending)
	require.NotNil(t, body.LinkedAt)
	assert.Equal(t, "2026-02-01T10:00:00Z", *body.LinkedAt)
	assert.Equal(t, "2026-02-01T09:00:00Z", body.CreatedAt)
	assert.NotContains(t, rec.Body.String(), "token")
}

func TestGetLink_Unlinked(t *testing.T) {
	store := &mockStore{rec: &model.CredentialRecord{DiscordUserID: "42", CreatedAt: time.Unix(0, 0)}}
	mux, _ := setupMux(t, &mockPinger{}, store)

	rec := doRequest(t, mux, "/api/v1/links/42")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"linked":false`)
	assert.Contains(t, rec.Body.String(), `"linked_at":null`)
}

func TestGetLink_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		store    *mockStore
		wantCode int
	}{
		{name: "unknown user", path: "/api/v1/links/42", store: &mockStore{}, wantCode: http.StatusNotFound},
		{name: "non numeric id", path: "/api/v1/links/abc", store: &mockStore{}, wantCode: http.StatusBadRequest},
		{name: "too long id", path: "/api/v1/links/" + strings.Repeat("1", 21), store: &mockStore{}, wantCode: http.StatusBadRequest},
		{name: "storage down", path: "/api/v1/links/42", store: &mockStore{err: driven.ErrStorageUnavailable}, wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, _ := setupMux(t, &mockPinger{}, tt.store)

			rec := doRequest(t, mux, tt.path)

			assert.Equal(t, tt.wantCode, rec.Code)
			var body httphandler.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestGetLink_PendingAttempt(t *testing.T) {
	mux, links := setupMux(t, &mockPinger{}, &mockStore{})

	ctx, cancel := context.WithCancel(t.Context())
	links.Start(ctx, "42")
	t.Cleanup(func() {
		cancel()
		links.Wait()
	})

	rec := doRequest(t, mux, "/api/v1/links/42")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pending":true`)
	assert.Contains(t, rec.Body.String(), `"linked":false`)
}

func TestMetricsEndpoint(t *testing.T) {
	mux, _ := setupMux(t, &mockPinger{}, &mockStore{})

	rec := doRequest(t, mux, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `johnnycage_commands_total{command="help",status="ok"} 1`)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	mux, _ := setupMux(t, &mockPinger{}, &mockStore{})

	assert.Equal(t, http.StatusNotFound, doRequest(t, mux, "/api/v1/prs").Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
