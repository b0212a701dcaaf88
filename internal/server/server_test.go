// Integration tests for the geotrie HTTP API
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/geotrie/internal/logger"
	"github.com/nainya/geotrie/internal/metrics"
	"github.com/nainya/geotrie/pkg/dataset"
	"github.com/nainya/geotrie/pkg/grid/gridtest"
	"github.com/nainya/geotrie/pkg/query"
)

// Prometheus collectors register globally, so all tests share one set.
var testMetrics = metrics.NewMetrics()

func setupTestServer(t *testing.T, sys *gridtest.Quad) (*Server, *httptest.Server) {
	engine := query.NewEngine[dataset.Point](sys, query.WithIndexLevel[dataset.Point](4))
	log := logger.NewLogger(logger.Config{Level: "error", Output: io.Discard})

	srv := NewServer("127.0.0.1:0", engine, log, testMetrics)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return srv, ts
}

func postPoint(t *testing.T, ts *httptest.Server, p dataset.Point) map[string]interface{} {
	body, err := json.Marshal(p)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/v1/points", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	return decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func seedCities(t *testing.T, ts *httptest.Server) {
	postPoint(t, ts, dataset.Point{ID: "vienna", Name: "Vienna", Lat: 48.2082, Lng: 16.3738})
	postPoint(t, ts, dataset.Point{ID: "baden", Name: "Baden", Lat: 48.0075, Lng: 16.2340})
	postPoint(t, ts, dataset.Point{ID: "sydney", Name: "Sydney", Lat: -33.8688, Lng: 151.2093})
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := setupTestServer(t, gridtest.NewQuad(6))

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "quadtest", body["grid_system"])
}

func TestAddPointAndQueryNear(t *testing.T) {
	_, ts := setupTestServer(t, gridtest.NewQuad(6))
	seedCities(t, ts)

	resp, err := http.Get(ts.URL + "/v1/near?lat=48.1&lng=16.3&radius_m=100000")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var near nearResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&near))

	ids := make([]string, 0, len(near.Results))
	for _, p := range near.Results {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{"vienna", "baden"}, ids)
	assert.Equal(t, 2, near.Stats.Unique)
	assert.Greater(t, near.Stats.CoveringCells, 0)
	assert.Greater(t, near.Stats.Prefixes, 0)
}

func TestQueryNearExactFilter(t *testing.T) {
	_, ts := setupTestServer(t, gridtest.NewQuad(6))
	postPoint(t, ts, dataset.Point{ID: "vienna", Lat: 48.2082, Lng: 16.3738})
	// Same index cell as Vienna on a level-4 quad grid, but ~340km out.
	postPoint(t, ts, dataset.Point{ID: "distant", Lat: 50.0, Lng: 20.0})

	resp, err := http.Get(ts.URL + "/v1/near?lat=48.1&lng=16.3&radius_m=100000")
	require.NoError(t, err)
	defer resp.Body.Close()
	var loose nearResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&loose))
	assert.Len(t, loose.Results, 2, "cell-granular results include the whole cell")

	resp, err = http.Get(ts.URL + "/v1/near?lat=48.1&lng=16.3&radius_m=100000&exact=true")
	require.NoError(t, err)
	defer resp.Body.Close()
	var exact nearResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&exact))
	require.Len(t, exact.Results, 1)
	assert.Equal(t, "vienna", exact.Results[0].ID)
}

func TestQueryNearNoMatches(t *testing.T) {
	_, ts := setupTestServer(t, gridtest.NewQuad(6))
	seedCities(t, ts)

	// An empty region must marshal results as [], not null.
	resp, err := http.Get(ts.URL + "/v1/near?lat=10&lng=-100&radius_m=1000")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	results, ok := body["results"].([]interface{})
	require.True(t, ok, "results should be a JSON array, got %T", body["results"])
	assert.Empty(t, results)
}

func TestNearValidation(t *testing.T) {
	_, ts := setupTestServer(t, gridtest.NewQuad(6))

	cases := []struct {
		name  string
		query string
	}{
		{"missing lat", "lng=16&radius_m=1000"},
		{"missing radius", "lat=48&lng=16"},
		{"radius not a number", "lat=48&lng=16&radius_m=abc"},
		{"latitude out of range", "lat=91&lng=16&radius_m=1000"},
		{"negative radius", "lat=48&lng=16&radius_m=-5"},
		{"max_level beyond grid", "lat=48&lng=16&radius_m=1000&max_level=9"},
		{"min_level above max_level", "lat=48&lng=16&radius_m=1000&min_level=3&max_level=2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/v1/near?" + tc.query)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decodeBody(t, resp)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestQueryNearCoveringViolation(t *testing.T) {
	sys := gridtest.NewQuad(6)
	// A covering cell at the grid's maximum depth has no children to
	// descend into, which the translator reports as a hard error.
	sys.ScriptCovering("012301")
	_, ts := setupTestServer(t, sys)

	resp, err := http.Get(ts.URL + "/v1/near?lat=48&lng=16&radius_m=1000")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSearchEndpoint(t *testing.T) {
	_, ts := setupTestServer(t, gridtest.NewQuad(6))
	seedCities(t, ts)

	resp, err := http.Get(ts.URL + "/v1/search?prefix=3200")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Prefix  string        `json:"prefix"`
		Entries []searchEntry `json:"entries"`
		Count   int           `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "3200", out.Prefix)
	assert.Equal(t, 2, out.Count, "Vienna and Baden share the level-4 token")

	// An empty prefix walks the whole index.
	resp, err = http.Get(ts.URL + "/v1/search?prefix=")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 3, out.Count)
}

func TestTokenEndpoint(t *testing.T) {
	_, ts := setupTestServer(t, gridtest.NewQuad(6))
	seedCities(t, ts)

	resp, err := http.Get(ts.URL + "/v1/tokens/3200")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.EqualValues(t, 2, body["count"])

	resp, err = http.Get(ts.URL + "/v1/tokens/0123")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddPointValidation(t *testing.T) {
	_, ts := setupTestServer(t, gridtest.NewQuad(6))

	resp, err := http.Post(ts.URL+"/v1/points", "application/json", bytes.NewReader([]byte("{broken")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, err := json.Marshal(dataset.Point{ID: "badlat", Lat: 95, Lng: 0})
	require.NoError(t, err)
	resp, err = http.Post(ts.URL+"/v1/points", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddPointGeneratesID(t *testing.T) {
	_, ts := setupTestServer(t, gridtest.NewQuad(6))

	body := postPoint(t, ts, dataset.Point{Name: "anonymous", Lat: 10, Lng: 10})
	id, ok := body["id"].(string)
	require.True(t, ok)
	assert.Len(t, id, 36)
	assert.NotEmpty(t, body["token"])
}

func TestStatsEndpoint(t *testing.T) {
	_, ts := setupTestServer(t, gridtest.NewQuad(6))
	seedCities(t, ts)

	resp, err := http.Get(ts.URL + "/v1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "quadtest", body["grid_system"])
	assert.EqualValues(t, 4, body["index_level"])
	assert.EqualValues(t, 3, body["records"])
	assert.EqualValues(t, 2, body["tokens"], "two distinct terminal tokens")

	counts, ok := body["op_counts"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 3, counts["AddPoint"])
}

func TestStartShutdownHandoff(t *testing.T) {
	engine := query.NewEngine[dataset.Point](gridtest.NewQuad(6), query.WithIndexLevel[dataset.Point](4))
	log := logger.NewLogger(logger.Config{Level: "error", Output: io.Discard})
	srv := NewServer("127.0.0.1:0", engine, log, testMetrics)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	// The http handle is built in NewServer, so shutting down from a
	// second goroutine is safe whether or not the listener is up yet.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
