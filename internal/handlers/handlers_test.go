package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/sentinel/internal/engine"
	"github.com/telhawk-systems/sentinel/internal/handlers"
	"github.com/telhawk-systems/sentinel/internal/models"
	"github.com/telhawk-systems/sentinel/internal/server"
)

type testAPI struct {
	engine *engine.Engine
	server *httptest.Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	current := time.Now()
	eng := engine.New(engine.DefaultConfig(), engine.Deps{},
		engine.WithNow(func() time.Time { return current }))

	srv := httptest.NewServer(server.NewRouter(handlers.NewHandler(eng)))
	t.Cleanup(srv.Close)

	return &testAPI{engine: eng, server: srv}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRecordEvent(t *testing.T) {
	api := newTestAPI(t)

	t.Run("accepted", func(t *testing.T) {
		resp := api.do(t, http.MethodPost, "/api/v1/events", models.RecordEventRequest{
			Type:     models.EventDataAccess,
			Severity: models.SeverityLow,
			Title:    "read",
			Source:   "svc-a",
		})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		out := decode[models.RecordEventResponse](t, resp)
		assert.NotEmpty(t, out.EventID)
	})

	t.Run("invalid severity", func(t *testing.T) {
		resp := api.do(t, http.MethodPost, "/api/v1/events", models.RecordEventRequest{
			Type:     models.EventDataAccess,
			Severity: "urgent",
			Title:    "read",
			Source:   "svc-a",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing required fields", func(t *testing.T) {
		resp := api.do(t, http.MethodPost, "/api/v1/events", models.RecordEventRequest{
			Severity: models.SeverityLow,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, api.server.URL+"/api/v1/events",
			bytes.NewReader([]byte("{not json")))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wrong method", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/api/v1/events", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestThreatLevel(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodGet, "/api/v1/threat-level", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	level := decode[models.ThreatLevel](t, resp)
	assert.Equal(t, models.SeverityLow, level.Level)
	assert.Equal(t, float64(0), level.Score)
}

func TestAlerts(t *testing.T) {
	api := newTestAPI(t)

	t.Run("empty list", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/api/v1/alerts", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, decode[[]models.SecurityAlert](t, resp))
	})

	api.engine.RecordEvent(models.EventDataAccess, models.SeverityHigh, "export", "", "svc-b", nil)
	api.engine.DrainOnce(context.Background())

	t.Run("lists active alerts", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/api/v1/alerts", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		alerts := decode[[]models.SecurityAlert](t, resp)
		require.Len(t, alerts, 1)
		assert.True(t, alerts[0].Escalated)
	})

	t.Run("severity filter", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/api/v1/alerts?severity=high", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, decode[[]models.SecurityAlert](t, resp), 1)

		resp = api.do(t, http.MethodGet, "/api/v1/alerts?severity=critical", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, decode[[]models.SecurityAlert](t, resp))
	})

	t.Run("invalid severity filter", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/api/v1/alerts?severity=urgent", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("acknowledge", func(t *testing.T) {
		alerts := api.engine.GetActiveAlerts()
		require.Len(t, alerts, 1)

		resp := api.do(t, http.MethodPost, "/api/v1/alerts/"+alerts[0].ID+"/ack",
			models.AcknowledgeAlertRequest{AcknowledgedBy: "analyst-1"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		acked := decode[models.SecurityAlert](t, resp)
		assert.True(t, acked.Acknowledged)
	})

	t.Run("acknowledge unknown alert", func(t *testing.T) {
		resp := api.do(t, http.MethodPost, "/api/v1/alerts/missing/ack",
			models.AcknowledgeAlertRequest{AcknowledgedBy: "analyst-1"})
		require.Equal(t, http.StatusNotFound, resp.StatusCode)

		out := decode[models.ErrorResponse](t, resp)
		assert.Equal(t, "not_found", out.Error)
		assert.Equal(t, "missing", out.ResourceID)
	})

	t.Run("acknowledge without body fields", func(t *testing.T) {
		resp := api.do(t, http.MethodPost, "/api/v1/alerts/some-id/ack",
			models.AcknowledgeAlertRequest{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestIncidents(t *testing.T) {
	api := newTestAPI(t)

	api.engine.RecordEvent(models.EventDataBreach, models.SeverityCritical, "breach", "", "db-1", nil)
	api.engine.DrainOnce(context.Background())

	resp := api.do(t, http.MethodGet, "/api/v1/incidents", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]models.SecurityIncident](t, resp)
	require.Len(t, list, 1)
	id := list[0].ID

	t.Run("status filter", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/api/v1/incidents?status=contained", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, decode[[]models.SecurityIncident](t, resp), 1)

		resp = api.do(t, http.MethodGet, "/api/v1/incidents?status=investigating", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, decode[[]models.SecurityIncident](t, resp))
	})

	t.Run("invalid transition conflicts", func(t *testing.T) {
		resp := api.do(t, http.MethodPut, "/api/v1/incidents/"+id+"/status",
			models.UpdateIncidentStatusRequest{Status: models.StatusClosed, UpdatedBy: "analyst-1"})
		require.Equal(t, http.StatusConflict, resp.StatusCode)

		out := decode[models.ErrorResponse](t, resp)
		assert.Equal(t, "invalid_transition", out.Error)
	})

	t.Run("invalid status value", func(t *testing.T) {
		resp := api.do(t, http.MethodPut, "/api/v1/incidents/"+id+"/status",
			models.UpdateIncidentStatusRequest{Status: "escalated", UpdatedBy: "analyst-1"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("valid transition", func(t *testing.T) {
		resp := api.do(t, http.MethodPut, "/api/v1/incidents/"+id+"/status",
			models.UpdateIncidentStatusRequest{Status: models.StatusResolved, UpdatedBy: "analyst-1"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		incident := decode[models.SecurityIncident](t, resp)
		assert.Equal(t, models.StatusResolved, incident.Status)
	})

	t.Run("unknown incident", func(t *testing.T) {
		resp := api.do(t, http.MethodPut, "/api/v1/incidents/missing/status",
			models.UpdateIncidentStatusRequest{Status: models.StatusContained, UpdatedBy: "analyst-1"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("assign", func(t *testing.T) {
		resp := api.do(t, http.MethodPut, "/api/v1/incidents/"+id+"/assignee",
			models.AssignIncidentRequest{Assignee: "analyst-2", UpdatedBy: "lead-1"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		incident := decode[models.SecurityIncident](t, resp)
		require.NotNil(t, incident.Assignee)
		assert.Equal(t, "analyst-2", *incident.Assignee)
	})
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[models.HealthResponse](t, resp)
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, "sentinel", out.Service)
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	api := newTestAPI(t)

	t.Run("generated when absent", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/healthz", nil)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	})

	t.Run("propagated when present", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, api.server.URL+"/healthz", nil)
		require.NoError(t, err)
		req.Header.Set("X-Request-ID", "trace-123")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, "trace-123", resp.Header.Get("X-Request-ID"))
	})
}
