package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/logger"
	"crew-scheduler/internal/metrics"
	"crew-scheduler/internal/service"
	"crew-scheduler/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code    int               `json:"code"`
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := logger.Discard()

	db, err := storage.Open(storage.DriverSQLite, filepath.Join(t.TempDir(), "api.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	repos, err := service.NewRepositories(db, log)
	require.NoError(t, err)
	auth, err := clock.NewAuthority("Asia/Jakarta", 5)
	require.NoError(t, err)

	now := time.Date(2024, 1, 2, 10, 0, 0, 0, auth.Location)
	m := metrics.New()
	svc := service.New(db, repos, auth, service.Options{
		Metrics: m,
		Logger:  log,
		Now:     func() time.Time { return now },
	})

	s := NewServer(svc, m, log)
	s.Now = func() time.Time { return now }
	return s
}

func do(t *testing.T, s *Server, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decode(t *testing.T, raw json.RawMessage, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, dst), string(raw))
}

func createTechnician(t *testing.T, s *Server, code, name string) string {
	t.Helper()
	status, env := do(t, s, http.MethodPost, "/api/technicians", map[string]string{"code": code, "name": name})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var v service.TechnicianView
	decode(t, env.Data, &v)
	return v.ID
}

func createProject(t *testing.T, s *Server, name string) string {
	t.Helper()
	status, env := do(t, s, http.MethodPost, "/api/projects", map[string]interface{}{
		"namaProject":            name,
		"lokasi":                 "Jakarta",
		"tanggalMulaiProject":    "2024-01-01",
		"tanggalDeadlineProject": "2024-01-31",
		"sigmaHari":              10,
		"sigmaTeknisi":           2,
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var v service.ProjectView
	decode(t, env.Data, &v)
	return v.ID
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))

	preflight := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	preflight.Header.Set("Origin", "http://admin.local")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	resp, err = s.App().Test(preflight, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "crew_scheduler_http_request_duration_seconds")
}

func TestAssignmentRoundTrip(t *testing.T) {
	s := newTestServer(t)
	a := createTechnician(t, s, "TK-01", "Andi")
	b := createTechnician(t, s, "TK-02", "Budi")
	p := createProject(t, s, "Gedung A")

	status, env := do(t, s, http.MethodPost, "/api/assignments", map[string]interface{}{
		"date": "2024-01-01",
		"assignments": []map[string]interface{}{
			{"projectId": p, "technicianId": a, "isProjectLeader": true},
			{"projectId": p, "technicianId": b},
		},
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var result service.SubmitResult
	decode(t, env.Data, &result)
	assert.Equal(t, 2, result.AppliedCount)

	// no date: defaults to the effective date, which rolls 2024-01-01 over
	status, env = do(t, s, http.MethodGet, "/api/assignments", nil)
	require.Equal(t, http.StatusOK, status)
	var cells []service.EffectiveAssignment
	decode(t, env.Data, &cells)
	require.Len(t, cells, 2)
	for _, cell := range cells {
		assert.True(t, cell.IsSelected)
		assert.Equal(t, cell.TechnicianID == a, cell.IsLeader)
	}

	status, env = do(t, s, http.MethodGet, "/api/attendance?date=2024-01-01&projectId="+p, nil)
	require.Equal(t, http.StatusOK, status)
	var rows []map[string]interface{}
	decode(t, env.Data, &rows)
	assert.Len(t, rows, 2)

	status, env = do(t, s, http.MethodGet, "/api/projects?date=2024-01-02", nil)
	require.Equal(t, http.StatusOK, status)
	var views []service.ProjectView
	decode(t, env.Data, &views)
	require.Len(t, views, 1)
	assert.Equal(t, "ongoing", views[0].ProjectStatus)
	assert.Equal(t, 2, views[0].DaysElapsed)
}

func TestValidationErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"bad query date", http.MethodGet, "/api/assignments?date=2024-13-01", nil},
		{"missing submission date", http.MethodPost, "/api/assignments", map[string]interface{}{"assignments": []interface{}{}}},
		{"item without technician", http.MethodPost, "/api/assignments", map[string]interface{}{
			"date":        "2024-01-01",
			"assignments": []map[string]interface{}{{"projectId": "p"}},
		}},
		{"unknown status", http.MethodPatch, "/api/projects/status", map[string]string{"projectId": "p", "status": "archived"}},
		{"short pending reason", http.MethodPatch, "/api/projects/status", map[string]string{"projectId": "p", "status": "pending", "reason": "no"}},
		{"project without deadline", http.MethodPost, "/api/projects", map[string]string{"namaProject": "x", "tanggalMulaiProject": "2024-01-01"}},
		{"technician initials too long", http.MethodPost, "/api/technicians", map[string]string{"code": "T", "name": "x", "initials": "ABC"}},
		{"jobs without technician", http.MethodGet, "/api/technicians/jobs", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, status, env.Message)
			assert.Equal(t, "error", env.Status)
			assert.NotEmpty(t, env.Errors)
		})
	}
}

func TestStatusEndpoints(t *testing.T) {
	s := newTestServer(t)
	p := createProject(t, s, "Gedung A")

	status, _ := do(t, s, http.MethodPatch, "/api/projects/status", map[string]string{"projectId": "missing", "status": "ongoing"})
	assert.Equal(t, http.StatusNotFound, status)

	status, env := do(t, s, http.MethodPatch, "/api/projects/status", map[string]string{
		"projectId": p, "status": "pending", "reason": "menunggu material",
	})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = do(t, s, http.MethodPost, "/api/assignments", map[string]interface{}{
		"date":        "2024-01-02",
		"assignments": []map[string]interface{}{{"projectId": p, "technicianId": "t"}},
	})
	require.Equal(t, http.StatusCreated, status)
	var result service.SubmitResult
	decode(t, env.Data, &result)
	require.Len(t, result.Projects, 1)
	assert.Equal(t, service.SkipLocked, result.Projects[0].Skipped)

	status, _ = do(t, s, http.MethodPatch, "/api/projects/status", map[string]string{"projectId": p, "status": "completed"})
	require.Equal(t, http.StatusOK, status)
	status, _ = do(t, s, http.MethodPatch, "/api/projects/status", map[string]string{"projectId": p, "status": "ongoing"})
	assert.Equal(t, http.StatusConflict, status)

	status, env = do(t, s, http.MethodGet, "/api/projects/"+p+"/report-ref", nil)
	require.Equal(t, http.StatusOK, status)
	var ref map[string]string
	decode(t, env.Data, &ref)
	assert.NotEmpty(t, ref["job_id"])

	status, _ = do(t, s, http.MethodGet, "/api/projects/missing/history", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTechnicianEndpoints(t *testing.T) {
	s := newTestServer(t)
	id := createTechnician(t, s, "TK-01", "andi")

	status, _ := do(t, s, http.MethodPost, "/api/technicians", map[string]string{"code": "TK-01", "name": "Dup"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env := do(t, s, http.MethodPatch, "/api/technicians/"+id, map[string]string{"initials": "ax"})
	require.Equal(t, http.StatusOK, status, env.Message)
	var v service.TechnicianView
	decode(t, env.Data, &v)
	assert.Equal(t, "AX", v.Initial)

	status, env = do(t, s, http.MethodGet, "/api/technicians", nil)
	require.Equal(t, http.StatusOK, status)
	var list []service.TechnicianView
	decode(t, env.Data, &list)
	assert.Len(t, list, 1)

	status, env = do(t, s, http.MethodGet, "/api/technicians/jobs?technician=TK-01", nil)
	require.Equal(t, http.StatusOK, status)
	var jobs []service.Job
	decode(t, env.Data, &jobs)
	assert.Empty(t, jobs)

	status, _ = do(t, s, http.MethodDelete, "/api/technicians/"+id, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = do(t, s, http.MethodDelete, "/api/technicians/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAdvanceDayEndpoint(t *testing.T) {
	s := newTestServer(t)

	status, env := do(t, s, http.MethodPost, "/api/days/advance", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var out struct {
		Date     string `json:"date"`
		Advanced bool   `json:"advanced"`
	}
	decode(t, env.Data, &out)
	assert.Equal(t, "2024-01-02", out.Date)
	assert.True(t, out.Advanced)

	status, env = do(t, s, http.MethodPost, "/api/days/advance", map[string]string{"date": "2024-01-02"})
	require.Equal(t, http.StatusOK, status)
	decode(t, env.Data, &out)
	assert.False(t, out.Advanced)

	status, _ = do(t, s, http.MethodPost, "/api/days/advance", map[string]string{"date": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, status)

	for i := 0; i < 10; i++ {
		status, _ = do(t, s, http.MethodPost, "/api/days/advance", nil)
	}
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestReadsDefaultToOpenedDay(t *testing.T) {
	s := newTestServer(t)
	createProject(t, s, "Gedung A")

	status, env := do(t, s, http.MethodPost, "/api/days/advance", map[string]string{"date": "2024-01-05"})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = do(t, s, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, status)
	var views []service.ProjectView
	decode(t, env.Data, &views)
	require.Len(t, views, 1)
	assert.Equal(t, 5, views[0].DaysElapsed)
}

func TestIsoDateValidation(t *testing.T) {
	v := newValidator()

	assert.NoError(t, v.Var("2024-02-29", "isodate"))
	assert.Error(t, v.Var("2024-13-01", "isodate"))
	assert.Error(t, v.Var("01.02.2024", "isodate"))
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	status, env := do(t, s, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "error", env.Status)
}
