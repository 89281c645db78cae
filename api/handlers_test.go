package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clockline/time-engine/api"
	"github.com/clockline/time-engine/leave"
	"github.com/clockline/time-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)

	handler := api.NewHandler(store)
	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})
	return server, store
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func seedWorkspace(t *testing.T, server *httptest.Server) {
	t.Helper()
	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/workspaces/ws-1/rules", map[string]any{
		"title":        "default",
		"workingHours": 8,
		"workingDays":  5,
		"weekDays":     []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		"isActive":     true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// =============================================================================
// TIMER ROUND TRIPS
// =============================================================================

func TestAPI_TimerLifecycle(t *testing.T) {
	server, _ := newTestServer(t)
	base := server.URL + "/api/timer"

	start := map[string]string{
		"userId": "user-1", "workspaceId": "ws-1",
		"projectId": "proj-1", "title": "writing",
	}
	resp, body := doJSON(t, http.MethodPost, base+"/start", start)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	timer := body["timer"].(map[string]any)
	assert.Equal(t, "running", timer["state"])

	// Double start maps Conflict onto 400.
	resp, body = doJSON(t, http.MethodPost, base+"/start", start)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "conflict", body["code"])

	resp, _ = doJSON(t, http.MethodPost, base+"/pause", map[string]string{"userId": "user-1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, base+"?userId=user-1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "paused", body["timer"].(map[string]any)["state"])

	entryID := body["entry"].(map[string]any)["id"].(string)
	resp, _ = doJSON(t, http.MethodPost, base+"/resume", map[string]string{
		"userId": "user-1", "entryId": entryID,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, base+"/stop", map[string]string{
		"userId": "user-1", "title": "writing done",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle", body["timer"].(map[string]any)["state"])
	assert.Equal(t, "writing done", body["entry"].(map[string]any)["title"])
}

func TestAPI_StartWithoutProject_Validation(t *testing.T) {
	server, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/timer/start", map[string]string{
		"userId": "user-1", "workspaceId": "ws-1", "title": "no project",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", body["code"])
}

func TestAPI_ManualEntryAndFetch(t *testing.T) {
	server, _ := newTestServer(t)

	created := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/entries", map[string]any{
		"userId": "user-1", "workspaceId": "ws-1", "projectId": "proj-1",
		"title":     "backfill",
		"startTime": created.Format(time.RFC3339),
		"endTime":   created.Add(2 * time.Hour).Format(time.RFC3339),
		"createdAt": created.Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	since := created.Add(24 * time.Hour).Format(time.RFC3339)
	url := fmt.Sprintf("%s/api/entries?userId=user-1&workspaceId=ws-1&since=%s", server.URL, since)
	resp, body := doJSON(t, http.MethodGet, url, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body["refetchRequired"].(bool))
	assert.Len(t, body["entries"].([]any), 1)
}

// =============================================================================
// LEAVE ROUND TRIPS
// =============================================================================

func TestAPI_LeaveLifecycle(t *testing.T) {
	server, store := newTestServer(t)
	seedWorkspace(t, server)

	require.NoError(t, store.SaveLeaveTypes(context.Background(), "ws-1", []leave.Type{
		{Name: "casual", Paid: true},
		{Name: "overtime", Paid: true},
		{Name: "unpaid", Paid: false},
	}))
	// Onboarding after the catalog exists seeds the ledger from it.
	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/workspaces/ws-1/members", map[string]any{
		"userId": "user-1", "name": "Asha",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, created := doJSON(t, http.MethodPost, server.URL+"/api/leaves", map[string]any{
		"userId": "user-1", "workspaceId": "ws-1", "type": "casual",
		"title":        "trip",
		"startDate":    "2025-04-07T00:00:00Z",
		"endDate":      "2025-04-09T00:00:00Z",
		"numberOfDays": 3,
		"dailyDetails": []any{},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "pending", created["status"])

	// Overlapping second request conflicts.
	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/leaves", map[string]any{
		"userId": "user-1", "workspaceId": "ws-1", "type": "casual",
		"title":        "also trip",
		"startDate":    "2025-04-08T00:00:00Z",
		"endDate":      "2025-04-10T00:00:00Z",
		"numberOfDays": 3,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "conflict", body["code"])

	resp, body = doJSON(t, http.MethodPut, server.URL+"/api/leaves/status", map[string]any{
		"leaveId": created["id"], "status": "approved",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "approved", body["leave"].(map[string]any)["status"])

	resp, body = doJSON(t, http.MethodGet,
		server.URL+"/api/leaves/balance/user-1/ws-1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	cells := body["leaveBalance"].(map[string]any)
	unpaid := cells["unpaid"].(map[string]any)
	assert.Equal(t, "3", unpaid["consumed"], "ledger had no quota, all three days are unpaid")

	resp2, err := http.Get(server.URL + "/api/leaves/user-1")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&list))
	assert.Len(t, list, 1)
}

func TestAPI_DeleteDecidedLeave_Conflict(t *testing.T) {
	server, store := newTestServer(t)
	seedWorkspace(t, server)

	require.NoError(t, store.SaveLeaveTypes(context.Background(), "ws-1", []leave.Type{{Name: "casual", Paid: true}}))
	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/workspaces/ws-1/members", map[string]any{
		"userId": "user-1", "name": "Asha",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, created := doJSON(t, http.MethodPost, server.URL+"/api/leaves", map[string]any{
		"userId": "user-1", "workspaceId": "ws-1", "type": "casual",
		"title": "trip", "startDate": "2025-04-07T00:00:00Z",
		"endDate": "2025-04-07T00:00:00Z", "numberOfDays": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPut, server.URL+"/api/leaves/status", map[string]any{
		"leaveId": created["id"], "status": "rejected", "rejectionReason": "coverage",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	url := fmt.Sprintf("%s/api/leaves/%s?userId=user-1", server.URL, created["id"])
	resp, body := doJSON(t, http.MethodDelete, url, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "conflict", body["code"])
}

func TestAPI_UnknownLeave_NotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPut, server.URL+"/api/leaves/status", map[string]any{
		"leaveId": "missing", "status": "approved",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["code"])
}

// =============================================================================
// WORKSPACE ADMIN ROUND TRIPS
// =============================================================================

func TestAPI_HolidaysAndRules(t *testing.T) {
	server, _ := newTestServer(t)
	base := server.URL + "/api/workspaces/ws-1"

	resp, body := doJSON(t, http.MethodPost, base+"/holidays", map[string]any{
		"title": "spring festival",
		"date":  "2025-04-18T00:00:00Z",
		"type":  "Gazetted",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Gazetted", body["type"])

	resp, body = doJSON(t, http.MethodPost, base+"/holidays", map[string]any{
		"title": "bad type", "date": "2025-04-19T00:00:00Z", "type": "Floating",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", body["code"])

	req, err := http.NewRequest(http.MethodGet, base+"/holidays?year=2025", nil)
	require.NoError(t, err)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	var holidays []map[string]any
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&holidays))
	assert.Len(t, holidays, 1)

	// No rule yet.
	resp, body = doJSON(t, http.MethodGet, base+"/rules", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["code"])

	resp, _ = doJSON(t, http.MethodPost, base+"/rules", map[string]any{
		"title": "default", "workingHours": 8, "workingDays": 5,
		"weekDays": []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		"isActive": true,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, base+"/rules", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(8), body["workingHours"])
}
