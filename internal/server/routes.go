package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/lazypower/synapse/internal/engine"
)

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role    string `json:"role"`
		Content string `json:"content"`
		Medium  string `json:"medium"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Role != "user" && req.Role != "assistant" {
		http.Error(w, `{"error":"role must be user or assistant"}`, http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, `{"error":"content required"}`, http.StatusBadRequest)
		return
	}
	if req.Medium == "" {
		req.Medium = "chat"
	}

	// Session detection happens before the write so the gap is measured
	// against the previous message, not this one.
	info, err := s.engine.Sessions.DetectSession()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	id, err := s.db.AddMessage(req.Role, req.Content, req.Medium, time.Now().UnixMilli())
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"id":             id,
		"is_new_session": info.IsNew,
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit int `json:"limit"`
	}
	// An empty body is fine; ingest defaults to the recent window.
	json.NewDecoder(r.Body).Decode(&req)
	if req.Limit <= 0 {
		req.Limit = 6
	}

	msgs, err := s.db.RecentMessages(req.Limit)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	stats, err := s.engine.Ingest(r.Context(), msgs)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, `{"error":"q required"}`, http.StatusBadRequest)
		return
	}

	topK := -1
	if v := r.URL.Query().Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, `{"error":"top_k must be a non-negative integer"}`, http.StatusBadRequest)
			return
		}
		topK = n
	}
	maxHops := 0
	if v := r.URL.Query().Get("max_hops"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, `{"error":"max_hops must be a non-negative integer"}`, http.StatusBadRequest)
			return
		}
		maxHops = n
	}

	results, err := s.engine.Activate(r.Context(), query, topK, maxHops)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []engine.ActivatedNode{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.engine.Sessions.DetectSession()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	// Async — summarization makes LLM calls and should not hold the request.
	go s.runSummarize()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "summarizing"})
}

// runSummarize drives one summarization pass with the configured minimum
// session size, same as the scheduled path.
func (s *Server) runSummarize() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, err := s.engine.SummarizePending(ctx, s.summarizeMin); err != nil {
		s.log.Warnw("summarize request failed", "err", err)
	}
}
