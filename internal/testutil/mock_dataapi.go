package testutil

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
)

// Paths served by MockDataAPI.
const (
	AggregatePrefix = "/aggregate/"
	TokenPath       = "/oauth/token"

	// MockToken is the bearer token issued by the token endpoint.
	MockToken = "mock-access-token"
)

// MockDataAPI is a Data API double. Unknown identifiers get a generated
// single-entry zip; identifiers marked with Fail get the configured status.
type MockDataAPI struct {
	*server

	mu          sync.RWMutex
	aggregates  map[string][]byte
	failures    map[string]int
	basic       [2]string
	requireAuth string // "", "basic", "bearer" or "oauth1"
	tokenCalls  int
}

// NewMockDataAPI starts a Data API double.
func NewMockDataAPI() *MockDataAPI {
	m := &MockDataAPI{
		aggregates: make(map[string][]byte),
		failures:   make(map[string]int),
	}
	m.server = newServer(m.route)
	return m
}

// TokenURL returns the client-credentials token endpoint.
func (m *MockDataAPI) TokenURL() string {
	return m.URL() + TokenPath
}

// SetAggregate fixes the payload served for id.
func (m *MockDataAPI) SetAggregate(id string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregates[id] = data
}

// Fail makes requests for id answer with status.
func (m *MockDataAPI) Fail(id string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[id] = status
}

// RequireBasic rejects aggregate requests without the given basic credentials.
func (m *MockDataAPI) RequireBasic(key, secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requireAuth = "basic"
	m.basic = [2]string{key, secret}
}

// RequireBearer rejects aggregate requests without MockToken, and makes the
// token endpoint accept key/secret.
func (m *MockDataAPI) RequireBearer(key, secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requireAuth = "bearer"
	m.basic = [2]string{key, secret}
}

// RequireOAuth1 rejects aggregate requests that carry no OAuth1 signature
// for the consumer key.
func (m *MockDataAPI) RequireOAuth1(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requireAuth = "oauth1"
	m.basic = [2]string{key, ""}
}

// TokenCalls returns how many tokens were issued.
func (m *MockDataAPI) TokenCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokenCalls
}

// Aggregate returns the payload served for id.
func (m *MockDataAPI) Aggregate(id string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if data, ok := m.aggregates[id]; ok {
		return data
	}
	return ZipBytes(map[string][]byte{id + ".txt": []byte("contents of " + id)})
}

func (m *MockDataAPI) route(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == TokenPath:
		m.handleToken(w, r)
	case strings.HasPrefix(r.URL.Path, AggregatePrefix):
		m.handleAggregate(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockDataAPI) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
		http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
		return
	}

	id, secret, ok := r.BasicAuth()
	if !ok {
		id, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}

	m.mu.Lock()
	valid := id == m.basic[0] && secret == m.basic[1]
	if valid {
		m.tokenCalls++
	}
	m.mu.Unlock()

	if !valid {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"access_token": MockToken,
		"token_type":   "bearer",
		"expires_in":   3600,
	})
}

func (m *MockDataAPI) handleAggregate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, AggregatePrefix)

	m.mu.RLock()
	status, failing := m.failures[id]
	mode, basic := m.requireAuth, m.basic
	m.mu.RUnlock()

	switch mode {
	case "basic":
		key, secret, ok := r.BasicAuth()
		if !ok || key != basic[0] || secret != basic[1] {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	case "bearer":
		if r.Header.Get("Authorization") != "Bearer "+MockToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	case "oauth1":
		if !oauth1Signed(r.Header.Get("Authorization"), basic[0]) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	if failing {
		http.Error(w, "no such volume: "+id, status)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Write(m.Aggregate(id))
}

// oauth1Signed reports whether header is an OAuth header signed for key.
func oauth1Signed(header, key string) bool {
	if !strings.HasPrefix(header, "OAuth ") {
		return false
	}
	return strings.Contains(header, `oauth_consumer_key="`+key+`"`) &&
		strings.Contains(header, `oauth_signature_method="HMAC-SHA1"`) &&
		strings.Contains(header, "oauth_signature=")
}
