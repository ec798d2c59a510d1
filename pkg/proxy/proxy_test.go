package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardsRequestWithPrefixStripped(t *testing.T) {
	var gotPath, gotQuery, gotBody, gotHeader string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotHeader = r.Header.Get("X-Custom")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"ok":true}`)
	}))
	defer upstream.Close()

	p, err := New("/api", upstream.URL, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/flows?active=1", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("X-Custom", "value")
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	assert.Equal(t, "/flows", gotPath)
	assert.Equal(t, "active=1", gotQuery)
	assert.Equal(t, `{"name":"x"}`, gotBody)
	assert.Equal(t, "value", gotHeader)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-Upstream"))
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestStripsHopByHopHeaders(t *testing.T) {
	var gotConnection, gotNominated string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotConnection = r.Header.Get("Keep-Alive")
		gotNominated = r.Header.Get("X-Drop-Me")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	p, err := New("/api", upstream.URL, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/flows", nil)
	req.Header.Set("Keep-Alive", "timeout=5")
	req.Header.Set("Connection", "X-Drop-Me")
	req.Header.Set("X-Drop-Me", "secret")
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	assert.Empty(t, gotConnection)
	assert.Empty(t, gotNominated)
}

func TestRedirectsArePassedThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer upstream.Close()

	p, err := New("/api", upstream.URL, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/flows", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/elsewhere", rec.Header().Get("Location"))
}

func TestUnreachableUpstreamReturns502(t *testing.T) {
	// A closed server guarantees a connection failure.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close()

	p, err := New("/api", upstream.URL, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/flows", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "upstream unavailable", body["detail"])
}

func TestNewRejectsBadUpstream(t *testing.T) {
	_, err := New("/api", "not a url", nil)
	assert.Error(t, err)

	_, err = New("/api", "ftp://example.com", nil)
	assert.Error(t, err)
}

func TestUpstreamPathIsPreserved(t *testing.T) {
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer upstream.Close()

	p, err := New("/api", upstream.URL+"/v1", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/flows", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	assert.Equal(t, "/v1/flows", gotPath)
}
