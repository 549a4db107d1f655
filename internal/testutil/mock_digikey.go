// Package testutil provides testing utilities for the DigiKey client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockAPI is a configurable mock DigiKey API server for testing. Out of the
// box it serves the OAuth token endpoint and a paginated keyword-search
// catalog seeded via SeedProducts; individual paths can be overridden with
// SetHandler.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	products []map[string]any

	// Tracking
	RequestCount      int
	TokenCount        int
	SearchOffsets     []int
	LastRequestHeader http.Header
}

// NewMockAPI creates a new mock DigiKey API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// TokenURL returns the mock OAuth token endpoint URL.
func (m *MockAPI) TokenURL() string {
	return m.server.URL + "/v1/oauth2/token"
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.TokenCount = 0
	m.SearchOffsets = nil
	m.LastRequestHeader = nil
}

// SeedProducts loads the catalog served by the keyword-search and
// product-details endpoints.
func (m *MockAPI) SeedProducts(products []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = products
}

// SeedGeneratedProducts seeds count synthetic products named PN-0..PN-(n-1).
func (m *MockAPI) SeedGeneratedProducts(count int) {
	products := make([]map[string]any, count)
	for i := range products {
		products[i] = map[string]any{
			"ManufacturerProductNumber": fmt.Sprintf("PN-%d", i),
			"Description": map[string]any{
				"ProductDescription": fmt.Sprintf("Test product %d", i),
			},
		}
	}
	m.SeedProducts(products)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetTokenCount returns the number of token requests served.
func (m *MockAPI) GetTokenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.TokenCount
}

// GetSearchOffsets returns the Offset of every keyword-search request, in
// arrival order.
func (m *MockAPI) GetSearchOffsets() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.SearchOffsets...)
}

// defaultHandler routes the built-in token, search, and detail endpoints.
func (m *MockAPI) defaultHandler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/v1/oauth2/token":
		m.handleToken(w, r)
	case r.URL.Path == "/products/v4/search/keyword":
		m.handleKeywordSearch(w, r)
	case strings.HasPrefix(r.URL.Path, "/products/v4/search/") &&
		strings.HasSuffix(r.URL.Path, "/productdetails"):
		m.handleProductDetails(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockAPI) handleToken(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.TokenCount++
	n := m.TokenCount
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"access_token": fmt.Sprintf("mock-token-%d", n),
		"token_type":   "Bearer",
		"expires_in":   599,
	})
}

func (m *MockAPI) handleKeywordSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Keywords string `json:"Keywords"`
		Limit    int    `json:"Limit"`
		Offset   int    `json:"Offset"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.SearchOffsets = append(m.SearchOffsets, body.Offset)
	products := m.products
	m.mu.Unlock()

	start := body.Offset
	if start > len(products) {
		start = len(products)
	}
	end := start + body.Limit
	if end > len(products) {
		end = len(products)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"ProductsCount": len(products),
		"Products":      products[start:end],
	})
}

func (m *MockAPI) handleProductDetails(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/products/v4/search/")
	productNumber := strings.TrimSuffix(trimmed, "/productdetails")

	m.mu.RLock()
	products := m.products
	m.mu.RUnlock()

	for _, p := range products {
		if p["ManufacturerProductNumber"] == productNumber {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"Product": p})
			return
		}
	}

	http.NotFound(w, r)
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 response carrying a low remaining
// budget in the vendor rate limit headers.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Content-Type":          "application/json",
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Limit":     "120",
			"Retry-After":           "30",
		},
	}
}

// NewFlakyHandler fails the first failures requests with status 503, then
// delegates to the given handler.
func NewFlakyHandler(failures int, then func(w http.ResponseWriter, r *http.Request)) func(w http.ResponseWriter, r *http.Request) {
	var mu sync.Mutex
	remaining := failures
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fail := remaining > 0
		if fail {
			remaining--
		}
		mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error": "temporarily unavailable"}`))
			return
		}
		then(w, r)
	}
}
