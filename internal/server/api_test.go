package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vesaa/fleetsim/internal/logger"
	"github.com/vesaa/fleetsim/internal/models"
	"github.com/vesaa/fleetsim/internal/simulator"
	"github.com/vesaa/fleetsim/internal/store"
)

const seedDoc = `{"services":[{"id":1,"name":"auth","status":"online","cpu":30,"memory":300,"responseTime":100,"errors":0},{"id":2,"name":"mail","status":"offline","cpu":0,"memory":0,"responseTime":0,"errors":6}]}`

type fakeSim struct {
	mu      sync.Mutex
	touches int
	stops   int
	state   simulator.State
}

func (f *fakeSim) Touch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches++
	f.state = simulator.Running
}

func (f *fakeSim) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.state = simulator.Stopped
}

func (f *fakeSim) State() simulator.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSim) Snapshot() simulator.Snapshot {
	return simulator.Snapshot{State: f.State().String()}
}

type brokenStore struct{}

func (brokenStore) EnsureHealthy(context.Context) (bool, error) {
	return false, errors.New("seed vanished")
}

func (brokenStore) Read(context.Context) (models.ServiceCollection, error) {
	return nil, store.ErrReadUnavailable
}

func (brokenStore) WriteAtomic(context.Context, models.ServiceCollection) error {
	return errors.New("read-only")
}

func newMemoryStore(t *testing.T) (*store.DocumentStore, *store.MemoryMedium) {
	t.Helper()
	seed, err := store.NewSeed([]byte(seedDoc), true)
	require.NoError(t, err)
	m := store.NewMemoryMedium()
	return store.NewDocumentStore(m, seed, true, logger.Discard()), m
}

func setupServer(t *testing.T, st store.Store, sim Simulator) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth, err := NewAuthenticator("test-secret", "admin", "s3cret")
	require.NoError(t, err)
	return New(Deps{
		Store:          st,
		Simulator:      sim,
		Auth:           auth,
		Driver:         "memory",
		MetricsEnabled: true,
		Logger:         logger.Discard(),
	}).Handler()
}

func doReq(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := doReq(t, h, http.MethodPost, "/api/login", "", map[string]string{"username": "admin", "password": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
		Type  string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "Bearer", resp.Type)
	return resp.Token
}

func TestRoot(t *testing.T) {
	st, _ := newMemoryStore(t)
	h := setupServer(t, st, &fakeSim{})
	rec := doReq(t, h, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "API up. Try /services", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestServices_HealsAndReturnsBareArray(t *testing.T) {
	st, medium := newMemoryStore(t)
	sim := &fakeSim{}
	h := setupServer(t, st, sim)

	rec := doReq(t, h, http.MethodGet, "/services", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "auth", list[0]["name"])
	assert.Equal(t, "mail", list[1]["name"])

	assert.Equal(t, 1, sim.touches)
	assert.Equal(t, simulator.Running, sim.State())
	assert.Equal(t, 1, medium.Writes(), "first request repairs from seed")

	doReq(t, h, http.MethodGet, "/services", "", nil)
	assert.Equal(t, 2, sim.touches)
	assert.Equal(t, 1, medium.Writes(), "healthy store is not rewritten")
}

func TestServices_WrappedOrBareOnDisk(t *testing.T) {
	for _, raw := range []string{
		`{"services":[{"name":"x","status":"online"}]}`,
		`[{"name":"x","status":"online"}]`,
	} {
		st, medium := newMemoryStore(t)
		medium.Set([]byte(raw))
		h := setupServer(t, st, &fakeSim{})

		rec := doReq(t, h, http.MethodGet, "/services", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var list []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list), rec.Body.String())
		require.Len(t, list, 1)
		assert.Equal(t, "x", list[0]["name"])
	}
}

func TestServices_EmptyFleet(t *testing.T) {
	st, medium := newMemoryStore(t)
	medium.Set([]byte(`{"services":[]}`))
	h := setupServer(t, st, &fakeSim{})

	rec := doReq(t, h, http.MethodGet, "/services", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestServices_ReadFailureIs500(t *testing.T) {
	sim := &fakeSim{}
	h := setupServer(t, brokenStore{}, sim)

	rec := doReq(t, h, http.MethodGet, "/services", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to read data", resp["error"])
	assert.Contains(t, resp["detail"], "unavailable")
	assert.Equal(t, 1, sim.touches, "activity is recorded even when the read fails")
}

func TestServices_StartsRealSimulator(t *testing.T) {
	st, medium := newMemoryStore(t)
	sim := simulator.NewLifecycle(st, simulator.NewRandomizer(simulator.DefaultPolicy, nil), simulator.Options{
		TickInterval: 5 * time.Millisecond,
		Logger:       logger.Discard(),
	})
	defer sim.Stop()
	h := setupServer(t, st, sim)

	require.Equal(t, simulator.Stopped, sim.State())
	rec := doReq(t, h, http.MethodGet, "/services", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, simulator.Running, sim.State())

	require.Eventually(t, func() bool { return medium.Writes() >= 3 }, time.Second, time.Millisecond)
	list, err := st.Read(context.Background())
	require.NoError(t, err)
	for _, rec := range list {
		assert.NoError(t, rec.Validate())
	}
}

func TestHealthzAndCORS(t *testing.T) {
	st, _ := newMemoryStore(t)
	h := setupServer(t, st, &fakeSim{})

	rec := doReq(t, h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "stopped", body["simulator"])
	assert.Equal(t, "memory", body["store"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = doReq(t, h, http.MethodOptions, "/services", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	st, _ := newMemoryStore(t)
	h := setupServer(t, st, &fakeSim{})
	rec := doReq(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDashboard(t *testing.T) {
	st, _ := newMemoryStore(t)
	h := setupServer(t, st, &fakeSim{})
	rec := doReq(t, h, http.MethodGet, "/dashboard/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/services")
}

func TestAdmin_RequiresToken(t *testing.T) {
	st, _ := newMemoryStore(t)
	h := setupServer(t, st, &fakeSim{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/simulator"},
		{http.MethodPost, "/api/simulator/stop"},
		{http.MethodPost, "/api/store/repair"},
		{http.MethodGet, "/api/host"},
	} {
		rec := doReq(t, h, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)

		rec = doReq(t, h, tc.method, tc.path, "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
	}
}

func TestAdmin_LoginRejectsBadCredentials(t *testing.T) {
	st, _ := newMemoryStore(t)
	h := setupServer(t, st, &fakeSim{})

	rec := doReq(t, h, http.MethodPost, "/api/login", "", map[string]string{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doReq(t, h, http.MethodPost, "/api/login", "", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_SimulatorAndRepair(t *testing.T) {
	st, medium := newMemoryStore(t)
	sim := &fakeSim{}
	h := setupServer(t, st, sim)
	token := login(t, h)

	doReq(t, h, http.MethodGet, "/services", "", nil)
	require.Equal(t, simulator.Running, sim.State())

	rec := doReq(t, h, http.MethodGet, "/api/simulator", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"running"`)

	rec = doReq(t, h, http.MethodPost, "/api/simulator/stop", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sim.stops)
	assert.Equal(t, simulator.Stopped, sim.State())

	medium.Set([]byte("{corrupt"))
	rec = doReq(t, h, http.MethodPost, "/api/store/repair", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"repaired":true}`, rec.Body.String())

	rec = doReq(t, h, http.MethodPost, "/api/store/repair", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"repaired":false}`, rec.Body.String())

	rec = doReq(t, h, http.MethodGet, "/api/host", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"goroutines"`)
}
