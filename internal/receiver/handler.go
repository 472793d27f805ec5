// Package receiver implements the companion endpoint for the HTTP sink: it
// accepts POSTed snapshot documents, validates them, and stores the latest
// one atomically for a co-located dashboard to poll.
package receiver

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/gauge-data-service/internal/observability"
	"github.com/kjstillabower/gauge-data-service/internal/publish"
)

// Documents larger than this are rejected outright.
const maxDocumentBytes = 256 * 1024

// Handler holds dependencies for the receiver endpoints.
type Handler struct {
	store  *publish.FileSink
	logger *zap.Logger
}

// NewHandler returns a Handler storing accepted documents via store.
func NewHandler(store *publish.FileSink, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// NewRouter wires the receiver routes. Non-POST methods on the document
// route answer 405.
func NewRouter(h *Handler, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(CorrelationIDMiddleware(logger))

	r.HandleFunc("/gauge-data", h.ReceiveDocument).Methods(http.MethodPost)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
	return r
}

// ReceiveDocument handles POST /gauge-data.
func (h *Handler) ReceiveDocument(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, h.logger)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes+1))
	if err != nil {
		observability.ReceiverDocumentsTotal.WithLabelValues("malformed").Inc()
		logger.Warn("failed to read document body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if len(body) == 0 || len(body) > maxDocumentBytes || !validDocument(body) {
		observability.ReceiverDocumentsTotal.WithLabelValues("malformed").Inc()
		logger.Warn("rejecting malformed document", zap.Int("bytes", len(body)))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	pub := publish.Publication{
		ID:        correlationID(r),
		Timestamp: time.Now(),
		Body:      body,
	}
	if err := h.store.Publish(r.Context(), pub); err != nil {
		observability.ReceiverDocumentsTotal.WithLabelValues("store_failed").Inc()
		logger.Error("failed to store document", zap.Error(err))
		w.WriteHeader(http.StatusInsufficientStorage)
		return
	}

	observability.ReceiverDocumentsTotal.WithLabelValues("accepted").Inc()
	w.WriteHeader(http.StatusOK)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// validDocument requires a well-formed JSON object.
func validDocument(body []byte) bool {
	var doc map[string]any
	return json.Unmarshal(body, &doc) == nil
}

// CorrelationIDMiddleware assigns or propagates X-Correlation-ID on every
// request.
func CorrelationIDMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			corrID := r.Header.Get("X-Correlation-ID")
			if corrID == "" {
				corrID = uuid.New().String()
			}
			w.Header().Set("X-Correlation-ID", corrID)
			r.Header.Set("X-Correlation-ID", corrID)
			next.ServeHTTP(w, r)
		})
	}
}

func correlationID(r *http.Request) string {
	return r.Header.Get("X-Correlation-ID")
}

func requestLogger(r *http.Request, logger *zap.Logger) *zap.Logger {
	if id := correlationID(r); id != "" {
		return logger.With(zap.String("correlation_id", id))
	}
	return logger
}
