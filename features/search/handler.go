package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ragstor/internal/adapter/reranker"
	"ragstor/internal/index"
	"ragstor/internal/middleware"
	"ragstor/internal/search"
)

const defaultTopK = 5

// Searcher answers a semantic query for one user.
type Searcher interface {
	Search(ctx context.Context, userID, query string, topK int) ([]search.Result, error)
}

// Reranker reorders candidate documents with a cross-encoder.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string, topK int) ([]reranker.Ranked, error)
}

type Handler struct {
	searcher Searcher
	reranker Reranker
}

func NewHandler(searcher Searcher, rr Reranker) *Handler {
	return &Handler{searcher: searcher, reranker: rr}
}

// Search handles POST /search. With rerank set, candidates are over-fetched
// and reordered by the cross-encoder before truncation to top_k.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Query  string `json:"query"`
		TopK   int    `json:"top_k"`
		Rerank bool   `json:"rerank"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "user_id is required", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "query is required", http.StatusBadRequest)
		return
	}
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}

	fetchK := req.TopK
	if req.Rerank {
		// Wider candidate pool gives the cross-encoder something to reorder.
		fetchK = req.TopK * 3
	}

	results, err := h.searcher.Search(r.Context(), req.UserID, req.Query, fetchK)
	if err != nil {
		if errors.Is(err, index.ErrIndexNotFound) {
			h.writeError(r.Context(), w, "NOT_FOUND", "no index for user", http.StatusNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "search failed", "error", err, "user_id", req.UserID)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if req.Rerank && len(results) > 0 {
		results, err = h.rerank(r.Context(), req.Query, results, req.TopK)
		if err != nil {
			slog.ErrorContext(r.Context(), "rerank failed", "error", err, "user_id", req.UserID)
			h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
			return
		}
	} else if len(results) > req.TopK {
		results = results[:req.TopK]
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": results}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) rerank(ctx context.Context, query string, results []search.Result, topK int) ([]search.Result, error) {
	docs := make([]string, len(results))
	for i, res := range results {
		docs[i] = res.Text
	}
	ranked, err := h.reranker.Rerank(ctx, query, docs, topK)
	if err != nil {
		return nil, err
	}

	out := make([]search.Result, 0, len(ranked))
	for _, rk := range ranked {
		res := results[rk.Index]
		res.Score = float32(rk.Score)
		out = append(out, res)
	}
	return out, nil
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
