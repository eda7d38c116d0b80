package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ryhazerus/tally"
	"github.com/ryhazerus/tally/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestRouter(t *testing.T) (*gin.Engine, *tally.Service) {
	t.Helper()
	svc := tally.New(tally.WithStore(store.NewMemoryStore()))
	t.Cleanup(func() { svc.Close() })
	return NewRouter(svc, Options{DefaultCounter: "main"}), svc
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

// counterValue extracts the rendered counter value from the page.
func counterValue(t *testing.T, body string) string {
	t.Helper()
	const marker = `id="counter-value">`
	i := strings.Index(body, marker)
	require.NotEqual(t, -1, i, "counter value not rendered")
	rest := body[i+len(marker):]
	return rest[:strings.Index(rest, "<")]
}

func TestCounterPageLoads(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "Simple Counter")
	assert.Contains(t, body, "Current Count")
	assert.Contains(t, body, "Increment")
	assert.Contains(t, body, "Reset")
	assert.Contains(t, body, "About")
	assert.Contains(t, body, "retain its value across application restarts")
	assert.Contains(t, body, `action="/counters/main/increment"`)
	assert.Equal(t, "0", counterValue(t, body))
}

func TestIncrementAndResetPage(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/counters/main/increment")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", counterValue(t, w.Body.String()))
	assert.Contains(t, w.Body.String(), "Counter incremented to 1!")

	w = do(r, http.MethodPost, "/counters/main/increment")
	assert.Equal(t, "2", counterValue(t, w.Body.String()))
	assert.Contains(t, w.Body.String(), "Counter incremented to 2!")

	w = do(r, http.MethodPost, "/counters/main/reset")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", counterValue(t, w.Body.String()))
	assert.Contains(t, w.Body.String(), "Counter reset to 0!")
}

func TestCounterPersistsAcrossPageLoads(t *testing.T) {
	r, _ := newTestRouter(t)

	do(r, http.MethodPost, "/counters/main/increment")
	do(r, http.MethodPost, "/counters/main/increment")

	w := do(r, http.MethodGet, "/")
	assert.Equal(t, "2", counterValue(t, w.Body.String()))
	assert.NotContains(t, w.Body.String(), "Counter incremented")
}

func TestPageShowsExistingValue(t *testing.T) {
	r, svc := newTestRouter(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.Increment(ctx, "main")
		require.NoError(t, err)
	}

	w := do(r, http.MethodGet, "/")
	assert.Equal(t, "3", counterValue(t, w.Body.String()))

	w = do(r, http.MethodPost, "/counters/main/increment")
	assert.Equal(t, "4", counterValue(t, w.Body.String()))
}

func TestNamedCounterPage(t *testing.T) {
	r, svc := newTestRouter(t)

	w := do(r, http.MethodPost, "/counters/a%2Fb/increment")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", counterValue(t, w.Body.String()))
	assert.Contains(t, w.Body.String(), `action="/counters/a%2Fb/increment"`)

	v, err := svc.Value(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	other, err := svc.Value(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, int64(0), other)
}

func TestAPI(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/counters/visits")
	require.Equal(t, http.StatusOK, w.Code)
	var got counterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "visits", got.Name)
	assert.Equal(t, int64(0), got.Value)
	assert.NotZero(t, got.ID)

	w = do(r, http.MethodPost, "/api/counters/visits/increment")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"visits","value":1}`, w.Body.String())

	w = do(r, http.MethodPost, "/api/counters/visits/reset")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"visits","value":0}`, w.Body.String())
}

func TestAPIRejectsLongNames(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/counters/"+strings.Repeat("x", 101)+"/increment")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid counter name")
}

type brokenCounters struct{}

var errBroken = errors.New("connection lost")

func (brokenCounters) GetOrCreate(context.Context, string) (store.Counter, error) {
	return store.Counter{}, errBroken
}
func (brokenCounters) Value(context.Context, string) (int64, error)     { return 0, errBroken }
func (brokenCounters) Increment(context.Context, string) (int64, error) { return 0, errBroken }
func (brokenCounters) Reset(context.Context, string) (int64, error)     { return 0, errBroken }

func TestStorageFailuresAreGeneric(t *testing.T) {
	r := NewRouter(brokenCounters{}, Options{DefaultCounter: "main"})

	w := do(r, http.MethodGet, "/")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Something went wrong")
	assert.NotContains(t, w.Body.String(), "connection lost")
	assert.Equal(t, "–", counterValue(t, w.Body.String()))

	w = do(r, http.MethodPost, "/counters/main/increment")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "–", counterValue(t, w.Body.String()))

	w = do(r, http.MethodPost, "/api/counters/main/increment")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Something went wrong. Please try again."}`, w.Body.String())
}

func TestHealthzAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := tally.New(tally.WithMetrics(reg))
	defer svc.Close()
	r := NewRouter(svc, Options{DefaultCounter: "main", Gatherer: reg})

	w := do(r, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	do(r, http.MethodPost, "/api/counters/main/increment")
	w = do(r, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `tally_operations_total{op="increment",result="ok"} 1`)
}
