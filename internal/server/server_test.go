package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lazypower/synapse/internal/engine"
	"github.com/lazypower/synapse/internal/llm"
	"github.com/lazypower/synapse/internal/store"
)

func testServer(t *testing.T, mock llm.Client) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	eng := engine.New(db, mock, nil)
	emb, err := engine.NewTFIDFEmbedder(db, 8)
	if err != nil {
		t.Fatalf("NewTFIDFEmbedder: %v", err)
	}
	eng.SetEmbedder(emb)
	return New(db, eng, nil, "test-version", 4)
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["db"] != true {
		t.Errorf("db = %v, want true", body["db"])
	}
}

func TestAddMessageEndpoint(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest("POST", "/api/messages",
		strings.NewReader(`{"role": "user", "content": "hello there"}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["is_new_session"] != true {
		t.Errorf("is_new_session = %v, want true for the first message", body["is_new_session"])
	}

	last, err := srv.db.LatestMessage()
	if err != nil || last == nil {
		t.Fatalf("LatestMessage = %+v, %v", last, err)
	}
	if last.Content != "hello there" || last.Medium != "chat" {
		t.Errorf("stored message = %+v", last)
	}
}

func TestAddMessageValidation(t *testing.T) {
	srv := testServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"bad role", `{"role": "system", "content": "x"}`},
		{"empty content", `{"role": "user", "content": ""}`},
		{"invalid json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/messages", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestRecallEndpointRequiresQuery(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest("GET", "/api/recall", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestRecallEndpointEmptyGraph(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest("GET", "/api/recall?q=anything", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var body struct {
		Query   string           `json:"query"`
		Count   int              `json:"count"`
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Query != "anything" || body.Count != 0 || body.Results == nil {
		t.Errorf("body = %+v, want empty results array", body)
	}
}

func TestRecallEndpointRejectsBadParams(t *testing.T) {
	srv := testServer(t, nil)

	for _, path := range []string{
		"/api/recall?q=x&top_k=banana",
		"/api/recall?q=x&top_k=-1",
		"/api/recall?q=x&max_hops=banana",
	} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", path, w.Code, http.StatusBadRequest)
		}
	}
}

func TestIngestEndpoint(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{
		Content: `{"entities": [{"type": "person", "label": "Sarah", "body": "Engineer.", "category": ""}], "relations": []}`,
		Provider: "mock",
	}}
	srv := testServer(t, mock)

	if _, err := srv.db.AddMessage("user", "Sarah is an engineer", "chat", 1000); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/ingest", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var stats engine.IngestStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if stats.NodesCreated != 1 {
		t.Errorf("NodesCreated = %d, want 1", stats.NodesCreated)
	}
}

func TestSessionEndpoint(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest("GET", "/api/session", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["is_new_session"] != true {
		t.Errorf("is_new_session = %v, want true with no messages", body["is_new_session"])
	}
}

func TestSummarizeEndpointIsAsync(t *testing.T) {
	srv := testServer(t, &llm.MockClient{Response: &llm.Response{Content: "summary", Provider: "mock"}})

	req := httptest.NewRequest("POST", "/api/summarize", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
}

func TestSummarizeHonorsMinimumSessionSize(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: "summary", Provider: "mock"}}
	srv := testServer(t, mock)

	// A two-message session that closed long ago, below the minimum of 4.
	if _, err := srv.db.AddMessage("user", "quick question", "chat", 1000); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if _, err := srv.db.AddMessage("assistant", "quick answer", "chat", 2000); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	srv.runSummarize()

	if len(mock.Calls) != 0 {
		t.Errorf("made %d LLM calls, want 0 for a session below the minimum", len(mock.Calls))
	}
	covers, err := srv.db.LatestCoversUntil()
	if err != nil {
		t.Fatalf("LatestCoversUntil: %v", err)
	}
	if covers != 0 {
		t.Errorf("watermark = %d, want 0", covers)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "synapse_") {
		t.Error("metrics output missing synapse_ counters")
	}
}
