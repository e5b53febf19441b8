package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/sheetsync/internal/db"
	"github.com/gridbase/sheetsync/internal/dialect"
)

type fakeReader struct {
	rows [][]string
}

func (f *fakeReader) FetchRange(_ context.Context, _, _ string, startRow, endRow int64) ([][]string, error) {
	start := int(startRow) - 1
	if start >= len(f.rows) {
		return nil, nil
	}
	end := int(endRow)
	if end > len(f.rows) {
		end = len(f.rows)
	}
	return f.rows[start:end], nil
}

func newTestHandler(t *testing.T, config *Config) (http.Handler, *Services) {
	t.Helper()

	database, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	reader := &fakeReader{rows: [][]string{
		{"name", "date"},
		{"Al", "2024-01-01"},
		{"Bo", "2024-01-02"},
	}}

	svc, err := newServices(config, database, dialect.SQLite{}, reader)
	require.NoError(t, err)

	return SetupRoutes(config, svc), svc
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	h, _ := newTestHandler(t, &Config{})
	w := doJSON(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestConfigLifecycle(t *testing.T) {
	h, _ := newTestHandler(t, &Config{})

	w := doJSON(t, h, http.MethodPut, "/api/v1/sync/configs/people",
		`{"spreadsheetId":"sheet-1","sheetName":"Sheet1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/v1/sync/configs/people", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cfg map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, "sheet-1", cfg["spreadsheetId"])
	// startRow defaults to 1, hasHeader to true
	assert.EqualValues(t, 1, cfg["startRow"])
	assert.Equal(t, true, cfg["hasHeader"])

	w = doJSON(t, h, http.MethodGet, "/api/v1/sync/configs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "people")

	w = doJSON(t, h, http.MethodDelete, "/api/v1/sync/configs/people", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/v1/sync/configs/people", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "E_CONFIG_NOT_FOUND")
}

func TestPutConfig_RejectsBadTableName(t *testing.T) {
	h, _ := newTestHandler(t, &Config{})
	w := doJSON(t, h, http.MethodPut, "/api/v1/sync/configs/drop%20table",
		`{"spreadsheetId":"sheet-1","sheetName":"Sheet1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "E_CONFIG_INVALID")
}

func TestSyncRun(t *testing.T) {
	h, _ := newTestHandler(t, &Config{})

	w := doJSON(t, h, http.MethodPut, "/api/v1/sync/configs/people",
		`{"spreadsheetId":"sheet-1","sheetName":"Sheet1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodPost, "/api/v1/sync/run", `{"tableName":"people"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.EqualValues(t, 2, res["insertedCount"])
	assert.EqualValues(t, 2, res["totalRows"])

	// the run produced a log entry
	w = doJSON(t, h, http.MethodGet, "/api/v1/sync/logs?table=people", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "success")
}

func TestSyncRun_UnknownTable(t *testing.T) {
	h, _ := newTestHandler(t, &Config{})
	w := doJSON(t, h, http.MethodPost, "/api/v1/sync/run", `{"tableName":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "E_CONFIG_NOT_FOUND")
}

func TestSyncRun_InvalidMode(t *testing.T) {
	h, _ := newTestHandler(t, &Config{})
	w := doJSON(t, h, http.MethodPost, "/api/v1/sync/run", `{"tableName":"people","mode":"delta"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobLifecycle(t *testing.T) {
	h, _ := newTestHandler(t, &Config{})

	w := doJSON(t, h, http.MethodPut, "/api/v1/sync/configs/people",
		`{"spreadsheetId":"sheet-1","sheetName":"Sheet1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodPost, "/api/v1/jobs",
		`{"name":"nightly","tableName":"people","schedule":"every 5m"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	// duplicate name
	w = doJSON(t, h, http.MethodPost, "/api/v1/jobs",
		`{"name":"nightly","tableName":"people","schedule":"every 5m"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "E_JOB_CONFLICT")

	// bad schedule
	w = doJSON(t, h, http.MethodPost, "/api/v1/jobs",
		`{"name":"bad","tableName":"people","schedule":"sometimes"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/v1/jobs/nightly", "")
	require.Equal(t, http.StatusOK, w.Code)

	// manual trigger runs the sync
	w = doJSON(t, h, http.MethodPost, "/api/v1/jobs/nightly/run", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "insertedCount")

	w = doJSON(t, h, http.MethodPost, "/api/v1/jobs/nightly/disable", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, h, http.MethodDelete, "/api/v1/jobs/nightly", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/v1/jobs/nightly", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "E_JOB_NOT_FOUND")
}

func TestJobClearStuck(t *testing.T) {
	h, _ := newTestHandler(t, &Config{})
	w := doJSON(t, h, http.MethodPost, "/api/v1/jobs/clear-stuck", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cleared")
}

func TestServiceToken(t *testing.T) {
	h, _ := newTestHandler(t, &Config{HTTP: HTTPConfig{ServiceToken: "sekrit"}})

	// health stays open
	w := doJSON(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/v1/jobs", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
