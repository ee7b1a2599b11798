package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/causalgrid/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func loadedApp(t *testing.T) *App {
	t.Helper()
	dir := testutil.WriteCorpus(t, map[string]string{"corpus.hcl": testutil.MinimumWageHCL})
	a, _ := SetupAppTest(t, Config{Paths: []string{dir}})
	_, err := a.Load(a.Context())
	require.NoError(t, err)
	return a
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	router := loadedApp(t).Router()

	w := do(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["snapshot_version"])
}

func TestNodeEndpoints(t *testing.T) {
	router := loadedApp(t).Router()

	w := do(t, router, http.MethodGet, "/v1/nodes/household_income", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "household_income", body["node"].(map[string]any)["id"])
	assert.Equal(t, false, body["redirected"])

	w = do(t, router, http.MethodGet, "/v1/nodes/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode(t, w)["error"], "ghost")

	w = do(t, router, http.MethodGet, "/v1/nodes/household_income/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["versions"], 1)

	w = do(t, router, http.MethodGet, "/v1/nodes/ghost/history", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReachEndpoints(t *testing.T) {
	router := loadedApp(t).Router()

	w := do(t, router, http.MethodGet, "/v1/nodes/minimum_wage/descendants", nil)
	require.Equal(t, http.StatusOK, w.Code)
	nodes := decode(t, w)["nodes"].([]any)
	require.Len(t, nodes, 2)
	assert.Equal(t, "household_income", nodes[0].(map[string]any)["node"])
	assert.Equal(t, "food_insecurity", nodes[1].(map[string]any)["node"])

	w = do(t, router, http.MethodGet, "/v1/nodes/food_insecurity/ancestors?depth=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["nodes"], 1)

	w = do(t, router, http.MethodGet, "/v1/nodes/food_insecurity/ancestors?depth=deep", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPathEndpoints(t *testing.T) {
	router := loadedApp(t).Router()

	w := do(t, router, http.MethodGet, "/v1/paths/strongest?from=minimum_wage&to=food_insecurity", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, -0.12, decode(t, w)["gain"], 1e-9)

	w = do(t, router, http.MethodGet, "/v1/paths/strongest?from=food_insecurity&to=minimum_wage", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodGet, "/v1/paths/strongest?from=minimum_wage", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/v1/chains?from_scale=structural&to_scale=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["chains"])

	w = do(t, router, http.MethodGet, "/v1/chains?from_scale=9&to_scale=3", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func effectDelta(t *testing.T, body map[string]any, id string) float64 {
	t.Helper()
	for _, raw := range body["effects"].([]any) {
		e := raw.(map[string]any)
		if e["node"] == id {
			return e["delta"].(float64)
		}
	}
	t.Fatalf("no effect for %s", id)
	return 0
}

func TestSimulateEndpoint(t *testing.T) {
	router := loadedApp(t).Router()

	t.Run("named intervention", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/v1/simulate", gin.H{"intervention": "raise_wage"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, true, body["converged"])
		assert.InDelta(t, 0.8, effectDelta(t, body, "household_income"), 1e-6)
		assert.InDelta(t, -0.24, effectDelta(t, body, "food_insecurity"), 1e-6)
	})

	t.Run("ad hoc deltas with interval mode", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/v1/simulate", gin.H{
			"deltas":      []gin.H{{"node": "household_income", "delta": 1}},
			"uncertainty": "interval",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, "interval", body["mode"])
		assert.InDelta(t, -0.3, effectDelta(t, body, "food_insecurity"), 1e-6)
	})

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"empty", gin.H{}, http.StatusBadRequest},
		{"both", gin.H{"intervention": "raise_wage", "deltas": []gin.H{{"node": "minimum_wage", "delta": 1}}}, http.StatusBadRequest},
		{"unknown intervention", gin.H{"intervention": "nope"}, http.StatusNotFound},
		{"unknown node", gin.H{"deltas": []gin.H{{"node": "ghost", "delta": 1}}}, http.StatusNotFound},
		{"unit mismatch", gin.H{"deltas": []gin.H{{"node": "minimum_wage", "delta": 1, "unit": "percent"}}}, http.StatusBadRequest},
		{"bad mode", gin.H{"intervention": "raise_wage", "uncertainty": "fuzzy"}, http.StatusBadRequest},
		{"negative samples", gin.H{"intervention": "raise_wage", "samples": -1}, http.StatusBadRequest},
		{"too many samples", gin.H{"intervention": "raise_wage", "uncertainty": "montecarlo", "samples": 100001}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/v1/simulate", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestSnapshotAndValidationEndpoints(t *testing.T) {
	router := loadedApp(t).Router()

	w := do(t, router, http.MethodGet, "/v1/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "causalgrid.snapshot/v1", body["schema"])
	assert.Len(t, body["nodes"], 3)
	assert.Len(t, body["mechanisms"], 2)

	w = do(t, router, http.MethodGet, "/v1/validation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["errors"])
}

func TestMetricsEndpoint(t *testing.T) {
	router := loadedApp(t).Router()

	do(t, router, http.MethodGet, "/health", nil)
	do(t, router, http.MethodPost, "/v1/simulate", gin.H{"intervention": "raise_wage"})

	w := do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "causalgrid_http_requests_total")
	assert.Contains(t, w.Body.String(), `route="/health"`)
}
