package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/provenance-rag/internal/core/domain"
	"github.com/kirillkom/provenance-rag/internal/core/ports"
	"github.com/kirillkom/provenance-rag/internal/observability/metrics"
)

type Router struct {
	service  string
	queryUC  ports.QueryService
	ingestUC ports.DocumentIngestor
	signals  ports.SignalStore
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	service string,
	queryUC ports.QueryService,
	ingestUC ports.DocumentIngestor,
	signals ports.SignalStore,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		service:  service,
		queryUC:  queryUC,
		ingestUC: ingestUC,
		signals:  signals,
		metrics:  httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/query", rt.query)
	mux.HandleFunc("/v1/ingest", rt.ingest)
	mux.HandleFunc("/v1/signals/latest", rt.latestSignal)
	mux.HandleFunc("/v1/signals/history", rt.signalHistory)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	start := time.Now()
	answer, err := rt.queryUC.Answer(r.Context(), req.Question)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	rt.recordQueryMetrics(answer, time.Since(start))

	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Document domain.EnrichedDocument `json:"document"`
		Signals  []domain.Signal         `json:"signals"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	receipt, err := rt.ingestUC.Ingest(r.Context(), req.Document, req.Signals)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordIngestSignals(rt.service, receipt.SignalsWritten, receipt.SignalsFailed)
	}

	writeJSON(w, http.StatusAccepted, receipt)
}

func (rt *Router) latestSignal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	subject := strings.TrimSpace(r.URL.Query().Get("subject"))
	factType := strings.TrimSpace(r.URL.Query().Get("fact_type"))
	if subject == "" || factType == "" {
		writeError(w, http.StatusBadRequest, "subject and fact_type are required")
		return
	}

	signal, err := rt.signals.GetLatest(r.Context(), subject, domain.FactType(factType), r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, signal)
}

func (rt *Router) signalHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	subject := strings.TrimSpace(r.URL.Query().Get("subject"))
	factType := strings.TrimSpace(r.URL.Query().Get("fact_type"))
	if subject == "" || factType == "" {
		writeError(w, http.StatusBadRequest, "subject and fact_type are required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	history, err := rt.signals.GetHistory(r.Context(), subject, domain.FactType(factType), limit)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signals": history})
}

func (rt *Router) recordQueryMetrics(answer *domain.AttributedAnswer, duration time.Duration) {
	if rt.metrics == nil || answer == nil {
		return
	}
	rt.metrics.RecordQuery(rt.service, string(answer.Classification.QueryType), duration)

	methodCounts := map[string]int{}
	for _, chunk := range answer.Sources {
		methodCounts[string(chunk.Method)]++
	}
	for method, count := range methodCounts {
		rt.metrics.RecordAttributionMethod(rt.service, method, count)
	}

	unattributed := 0
	for _, sentence := range answer.Sentences {
		if !sentence.HasAttribution {
			unattributed++
		}
	}
	rt.metrics.RecordUnattributedSentences(rt.service, unattributed)
	rt.metrics.RecordAttributedPaths(rt.service, len(answer.Paths))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
