package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vnmchuo/noteswise/internal/auth"
	"github.com/vnmchuo/noteswise/internal/usage"
)

type Handler struct {
	service *Service
	usage   *usage.Recorder
	history usage.Store
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewHandler wires the /ai endpoints. recorder and history may be nil, in
// which case calls are not logged and /ai/usage answers 503.
func NewHandler(service *Service, recorder *usage.Recorder, history usage.Store, tracer trace.Tracer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: service,
		usage:   recorder,
		history: history,
		tracer:  tracer,
		logger:  logger,
	}
}

// Routes mounts the endpoints under /ai. generation wraps the endpoints that
// call AI backends.
func (h *Handler) Routes(r chi.Router, generation func(http.Handler) http.Handler) {
	r.Route("/ai", func(r chi.Router) {
		r.Get("/providers", h.HandleProviders)
		r.Get("/health", h.HandleHealth)
		r.Get("/usage", h.HandleUsage)

		r.Group(func(r chi.Router) {
			if generation != nil {
				r.Use(generation)
			}
			r.Post("/generate-summary", h.HandleGenerateSummary)
			r.Post("/generate-text", h.HandleGenerateText)
			r.Post("/generate-flashcards", h.HandleGenerateFlashcards)
			r.Post("/generate-audio", h.HandleGenerateAudio)
			r.Post("/test-summary", h.HandleTestSummary)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type generateRequest struct {
	Content  string `json:"content"`
	Prompt   string `json:"prompt"`
	Provider string `json:"provider"`
}

type audioRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// call carries what every AI endpoint needs for tracing and usage logging.
type call struct {
	userID    string
	requestID string
	started   time.Time
}

// begin authenticates and decodes the body into v.
func (h *Handler) begin(w http.ResponseWriter, r *http.Request, v any) (call, bool) {
	userID := auth.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return call{}, false
	}
	requestID := auth.GetRequestID(r.Context())
	if requestID == "" {
		requestID = uuid.New().String()
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return call{}, false
	}
	return call{userID: userID, requestID: requestID, started: time.Now()}, true
}

func (h *Handler) providerLabel(requested string) string {
	if strings.TrimSpace(requested) != "" {
		return strings.ToLower(strings.TrimSpace(requested))
	}
	return h.service.factory.DefaultProvider()
}

func (h *Handler) record(c call, providerName, operation string, success bool) {
	if h.usage == nil {
		return
	}
	h.usage.Enqueue(&usage.Log{
		UserID:    c.userID,
		RequestID: c.requestID,
		Provider:  providerName,
		Operation: operation,
		Success:   success,
		LatencyMs: time.Since(c.started).Milliseconds(),
	})
}

func (h *Handler) span(ctx context.Context, name string, c call, providerName string) (context.Context, trace.Span) {
	ctx, span := h.tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("user_id", c.userID),
		attribute.String("request_id", c.requestID),
		attribute.String("ai.provider", providerName),
	)
	return ctx, span
}

func (h *Handler) HandleGenerateSummary(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	c, ok := h.begin(w, r, &req)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	ctx, span := h.span(r.Context(), "http.generate_summary", c, req.Provider)
	defer span.End()

	res := h.service.SummaryResult(ctx, req.Content, req.Provider)
	providerName := res.Provider
	if providerName == "" {
		providerName = h.providerLabel(req.Provider)
	}
	h.record(c, providerName, OperationSummary, res.Success)

	summary := ""
	if res.Success {
		summary = res.Content
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (h *Handler) HandleGenerateText(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	c, ok := h.begin(w, r, &req)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	ctx, span := h.span(r.Context(), "http.generate_text", c, req.Provider)
	defer span.End()

	text := h.service.GenerateText(ctx, req.Prompt, req.Provider)
	h.record(c, h.providerLabel(req.Provider), OperationText, text != "")
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (h *Handler) HandleGenerateFlashcards(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	c, ok := h.begin(w, r, &req)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	ctx, span := h.span(r.Context(), "http.generate_flashcards", c, req.Provider)
	defer span.End()

	cards := h.service.GenerateFlashcards(ctx, req.Content, req.Provider)
	span.SetAttributes(attribute.Int("ai.flashcards", len(cards)))
	h.record(c, h.providerLabel(req.Provider), OperationFlashcards, len(cards) > 0)
	writeJSON(w, http.StatusOK, map[string]any{"flashcards": cards})
}

func (h *Handler) HandleGenerateAudio(w http.ResponseWriter, r *http.Request) {
	var req audioRequest
	c, ok := h.begin(w, r, &req)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	ctx, span := h.span(r.Context(), "http.generate_audio", c, "elevenlabs")
	defer span.End()

	audio := h.service.SynthesizeAudio(ctx, req.Text, req.Voice)
	h.record(c, "elevenlabs", OperationAudio, audio != "")
	writeJSON(w, http.StatusOK, map[string]string{"audioContent": audio})
}

// HandleTestSummary is a debugging aid: it always answers 200 and reports
// whether the chosen provider produced a summary.
func (h *Handler) HandleTestSummary(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	c, ok := h.begin(w, r, &req)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	ctx, span := h.span(r.Context(), "http.test_summary", c, req.Provider)
	defer span.End()

	res := h.service.SummaryResult(ctx, req.Content, req.Provider)
	providerName := req.Provider
	if providerName == "" {
		providerName = "default"
	}
	h.record(c, h.providerLabel(req.Provider), OperationSummary, res.Success)

	summary := ""
	if res.Success {
		summary = res.Content
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":   summary,
		"provider":  providerName,
		"isSuccess": summary != "",
	})
}

func (h *Handler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	if auth.GetUserID(r.Context()) == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": h.service.ListAvailableProviders()})
}

// HandleHealth probes every available provider. The aggregate is Healthy
// when at least one provider answers.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if auth.GetUserID(r.Context()) == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "http.providers_health")
	defer span.End()

	health := h.service.ProvidersHealth(ctx)
	status := "Unhealthy"
	for _, ok := range health {
		if ok {
			status = "Healthy"
			break
		}
	}
	span.SetAttributes(attribute.String("ai.health", status))
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"providers": health,
	})
}

func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.GetUserID(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "usage history unavailable")
		return
	}

	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		var err error
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'from' date format (use RFC3339)")
			return
		}
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		var err error
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'to' date format (use RFC3339)")
			return
		}
	}

	logs, err := h.history.GetUsageByUser(ctx, userID, from, to)
	if err != nil {
		h.logger.Error("failed to read usage logs", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	counts, err := h.history.CountByOperation(ctx, userID, from, to)
	if err != nil {
		h.logger.Error("failed to count usage", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if logs == nil {
		logs = []*usage.Log{}
	}
	if counts == nil {
		counts = []usage.OperationCount{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":        userID,
		"total_requests": len(logs),
		"operations":     counts,
		"logs":           logs,
		"from":           from,
		"to":             to,
	})
}
