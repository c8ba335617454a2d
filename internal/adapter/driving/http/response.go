package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/johnnycage/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON body of GET /api/v1/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Time     string `json:"time"`
}

// LinkResponse is the JSON body of GET /api/v1/links/{user_id}.
type LinkResponse struct {
	DiscordUserID string  `json:"discord_user_id"`
	Linked        bool    `json:"linked"`
	Pending       bool    `json:"pending"`
	LinkedAt      *string `json:"linked_at"`
	CreatedAt     string  `json:"created_at,omitempty"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
}

func toLinkResponse(userID string, rec *model.CredentialRecord, pending bool) LinkResponse {
	resp := LinkResponse{DiscordUserID: userID, Pending: pending}
	if rec == nil {
		return resp
	}

	resp.Linked = rec.Linked
	resp.CreatedAt = rec.CreatedAt.UTC().Format(time.RFC3339)
	resp.UpdatedAt = rec.UpdatedAt.UTC().Format(time.RFC3339)
	if rec.LinkedAt != nil {
		s := rec.LinkedAt.UTC().Format(time.RFC3339)
		resp.LinkedAt = &s
	}
	return resp
}
