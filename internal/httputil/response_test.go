package httputil

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteJSONError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSONError(rec, http.StatusBadRequest, "test error")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "test error", decodeBody(t, rec)["error"])
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"message": "hello"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "hello", decodeBody(t, rec)["message"])
}

func TestWriteJSONUnencodable(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSONOK(rec, math.NaN())

	// status is already committed when encoding fails
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		write      func(http.ResponseWriter)
		wantStatus int
		wantError  string
	}{
		{"method not allowed", MethodNotAllowed, http.StatusMethodNotAllowed, "method not allowed"},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "bad input") }, http.StatusBadRequest, "bad input"},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "boom") }, http.StatusInternalServerError, "boom"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "no frame") }, http.StatusNotFound, "no frame"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decodeBody(t, rec)["error"])
		})
	}
}

func TestRequireMethod(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	assert.True(t, RequireMethod(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.MethodGet))

	rec = httptest.NewRecorder()
	assert.False(t, RequireMethod(rec, httptest.NewRequest(http.MethodPost, "/", nil), http.MethodGet))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}

func TestQueryInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		want    int
		wantErr bool
	}{
		{"missing uses default", "/x", 50, false},
		{"valid", "/x?limit=10", 10, false},
		{"at max", "/x?limit=1000", 1000, false},
		{"not a number", "/x?limit=ten", 0, true},
		{"below min", "/x?limit=0", 0, true},
		{"above max", "/x?limit=1001", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := QueryInt(httptest.NewRequest(http.MethodGet, tt.url, nil), "limit", 50, 1, 1000)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
