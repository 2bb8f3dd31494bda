package notes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vnmchuo/noteswise/internal/ai"
	"github.com/vnmchuo/noteswise/internal/auth"
	"github.com/vnmchuo/noteswise/internal/provider"
)

// AI is the subset of *ai.Service the notes endpoints use.
type AI interface {
	Summarize(ctx context.Context, content, providerName string) string
	GenerateFlashcards(ctx context.Context, content, providerName string) []provider.Flashcard
	SynthesizeFlashcardAudio(ctx context.Context, card provider.Flashcard, voice string, mode ai.AudioMode) (ai.FlashcardAudio, error)
	SynthesizeFlashcardSetAudio(ctx context.Context, cards []provider.Flashcard, voice string, mode ai.AudioMode) (ai.AudioSetResult, error)
}

type Handler struct {
	store  Store
	ai     AI
	tracer trace.Tracer
	logger *zap.Logger
}

func NewHandler(store Store, svc AI, tracer trace.Tracer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, ai: svc, tracer: tracer, logger: logger}
}

// Routes mounts the CRUD endpoints. generation wraps the endpoints that call
// AI backends, typically with a rate limiter.
func (h *Handler) Routes(r chi.Router, generation func(http.Handler) http.Handler) {
	r.Get("/notes", h.HandleListNotes)
	r.Get("/notes/{id}", h.HandleGetNote)
	r.Delete("/notes/{id}", h.HandleDeleteNote)
	r.Get("/categories", h.HandleListCategories)
	r.Post("/categories", h.HandleCreateCategory)
	r.Get("/notes/{id}/flashcards", h.HandleListFlashcards)

	r.Group(func(r chi.Router) {
		if generation != nil {
			r.Use(generation)
		}
		r.Post("/notes", h.HandleCreateNote)
		r.Put("/notes/{id}", h.HandleUpdateNote)
		r.Post("/notes/{id}/flashcards/generate", h.HandleGenerateFlashcards)
		r.Post("/notes/{id}/flashcards/audio", h.HandleNoteFlashcardsAudio)
		r.Post("/flashcards/{id}/audio", h.HandleFlashcardAudio)
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

// userOrReject returns the authenticated user id, writing 401 when absent.
func userOrReject(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := auth.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return userID, true
}

func (h *Handler) storeError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	h.logger.Error("store error", zap.String("entity", what), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

type createNoteRequest struct {
	Title           string  `json:"title"`
	Content         string  `json:"content"`
	CategoryID      *string `json:"categoryId"`
	AudioURL        string  `json:"audioUrl"`
	GenerateSummary bool    `json:"generateSummary"`
	AIProvider      string  `json:"aiProvider"`
}

type updateNoteRequest struct {
	Title           *string `json:"title"`
	Content         *string `json:"content"`
	Summary         *string `json:"summary"`
	AudioURL        *string `json:"audioUrl"`
	CategoryID      *string `json:"categoryId"`
	GenerateSummary bool    `json:"generateSummary"`
	AIProvider      string  `json:"aiProvider"`
}

func (h *Handler) HandleListNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := userOrReject(w, r)
	if !ok {
		return
	}
	notes, err := h.store.ListNotes(r.Context(), userID)
	if err != nil {
		h.storeError(w, err, "notes")
		return
	}
	if notes == nil {
		notes = []*Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *Handler) HandleGetNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := userOrReject(w, r)
	if !ok {
		return
	}
	note, err := h.store.GetNote(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err, "note")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *Handler) validCategory(ctx context.Context, w http.ResponseWriter, userID string, categoryID *string) bool {
	if categoryID == nil {
		return true
	}
	if _, err := h.store.GetCategory(ctx, userID, *categoryID); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusBadRequest, "category not found")
		} else {
			h.storeError(w, err, "category")
		}
		return false
	}
	return true
}

// attachSummary adds an AI summary to a saved note. Failures only cost the
// summary: the note is already persisted.
func (h *Handler) attachSummary(ctx context.Context, note *Note, providerName string) {
	if strings.TrimSpace(note.Content) == "" {
		return
	}
	ctx, span := h.tracer.Start(ctx, "notes.summarize")
	defer span.End()
	span.SetAttributes(attribute.String("note_id", note.ID))

	summary := h.ai.Summarize(ctx, note.Content, providerName)
	if summary == "" {
		h.logger.Warn("note saved without summary", zap.String("note_id", note.ID))
		return
	}
	previous := note.Summary
	note.Summary = summary
	if err := h.store.UpdateNote(ctx, note); err != nil {
		note.Summary = previous
		h.logger.Error("failed to store note summary", zap.String("note_id", note.ID), zap.Error(err))
	}
}

func (h *Handler) HandleCreateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := userOrReject(w, r)
	if !ok {
		return
	}

	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	categoryID := blankToNil(req.CategoryID)
	if !h.validCategory(r.Context(), w, userID, categoryID) {
		return
	}

	note := &Note{
		UserID:     userID,
		CategoryID: categoryID,
		Title:      req.Title,
		Content:    req.Content,
		AudioURL:   req.AudioURL,
	}
	if err := h.store.CreateNote(r.Context(), note); err != nil {
		h.storeError(w, err, "note")
		return
	}
	if req.GenerateSummary {
		h.attachSummary(r.Context(), note, req.AIProvider)
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *Handler) HandleUpdateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := userOrReject(w, r)
	if !ok {
		return
	}

	var req updateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	note, err := h.store.GetNote(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err, "note")
		return
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}
		note.Title = *req.Title
	}
	if req.Content != nil {
		if strings.TrimSpace(*req.Content) == "" {
			writeError(w, http.StatusBadRequest, "content is required")
			return
		}
		note.Content = *req.Content
	}
	if req.Summary != nil {
		note.Summary = *req.Summary
	}
	if req.AudioURL != nil {
		note.AudioURL = *req.AudioURL
	}
	if req.CategoryID != nil {
		categoryID := blankToNil(req.CategoryID)
		if !h.validCategory(r.Context(), w, userID, categoryID) {
			return
		}
		note.CategoryID = categoryID
	}

	if err := h.store.UpdateNote(r.Context(), note); err != nil {
		h.storeError(w, err, "note")
		return
	}
	if req.GenerateSummary {
		h.attachSummary(r.Context(), note, req.AIProvider)
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *Handler) HandleDeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := userOrReject(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteNote(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.storeError(w, err, "note")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := userOrReject(w, r)
	if !ok {
		return
	}
	categories, err := h.store.ListCategories(r.Context(), userID)
	if err != nil {
		h.storeError(w, err, "categories")
		return
	}
	if categories == nil {
		categories = []*Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userOrReject(w, r)
	if !ok {
		return
	}

	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	category := &Category{UserID: userID, Name: req.Name, Color: req.Color}
	if err := h.store.CreateCategory(r.Context(), category); err != nil {
		h.storeError(w, err, "category")
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (h *Handler) HandleListFlashcards(w http.ResponseWriter, r *http.Request) {
	userID, ok := userOrReject(w, r)
	if !ok {
		return
	}
	noteID := chi.URLParam(r, "id")
	if _, err := h.store.GetNote(r.Context(), userID, noteID); err != nil {
		h.storeError(w, err, "note")
		return
	}
	cards, err := h.store.ListFlashcards(r.Context(), userID, noteID)
	if err != nil {
		h.storeError(w, err, "flashcards")
		return
	}
	if cards == nil {
		cards = []*Flashcard{}
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *Handler) HandleGenerateFlashcards(w http.ResponseWriter, r *http.Request) {
	userID, ok := userOrReject(w, r)
	if !ok {
		return
	}

	var req struct {
		Provider string `json:"provider"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	note, err := h.store.GetNote(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err, "note")
		return
	}

	generated := h.ai.GenerateFlashcards(r.Context(), note.Content, req.Provider)
	if len(generated) == 0 {
		writeError(w, http.StatusBadGateway, "failed to generate flashcards")
		return
	}

	cards := make([]*Flashcard, len(generated))
	for i, g := range generated {
		cards[i] = &Flashcard{Question: g.Question, Answer: g.Answer}
	}
	if err := h.store.ReplaceFlashcards(r.Context(), userID, note.ID, cards); err != nil {
		h.storeError(w, err, "flashcards")
		return
	}
	writeJSON(w, http.StatusCreated, cards)
}

type audioRequest struct {
	Voice string `json:"voice"`
	Type  string `json:"type"`
}

func decodeAudioRequest(w http.ResponseWriter, r *http.Request) (string, ai.AudioMode, bool) {
	var req audioRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return "", "", false
		}
	}
	mode, err := ai.ParseAudioMode(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, "type must be question, answer or both")
		return "", "", false
	}
	return req.Voice, mode, true
}

func (h *Handler) HandleFlashcardAudio(w http.ResponseWriter, r *http.Request) {
	userID, ok := userOrReject(w, r)
	if !ok {
		return
	}
	voice, mode, ok := decodeAudioRequest(w, r)
	if !ok {
		return
	}

	card, err := h.store.GetFlashcard(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err, "flashcard")
		return
	}

	audio, err := h.ai.SynthesizeFlashcardAudio(r.Context(), provider.Flashcard{Question: card.Question, Answer: card.Answer}, voice, mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if audio.QuestionAudio == nil && audio.AnswerAudio == nil {
		writeError(w, http.StatusBadGateway, "failed to generate audio")
		return
	}
	if err := h.store.UpdateFlashcardAudio(r.Context(), userID, card.ID, audio.QuestionAudio, audio.AnswerAudio); err != nil {
		h.storeError(w, err, "flashcard")
		return
	}
	writeJSON(w, http.StatusOK, audio)
}

func (h *Handler) HandleNoteFlashcardsAudio(w http.ResponseWriter, r *http.Request) {
	userID, ok := userOrReject(w, r)
	if !ok {
		return
	}
	voice, mode, ok := decodeAudioRequest(w, r)
	if !ok {
		return
	}

	noteID := chi.URLParam(r, "id")
	if _, err := h.store.GetNote(r.Context(), userID, noteID); err != nil {
		h.storeError(w, err, "note")
		return
	}
	cards, err := h.store.ListFlashcards(r.Context(), userID, noteID)
	if err != nil {
		h.storeError(w, err, "flashcards")
		return
	}

	input := make([]provider.Flashcard, len(cards))
	for i, c := range cards {
		input[i] = provider.Flashcard{Question: c.Question, Answer: c.Answer}
	}
	result, err := h.ai.SynthesizeFlashcardSetAudio(r.Context(), input, voice, mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	generated, failed := 0, 0
	for i, audio := range result.Audio {
		if audio.QuestionAudio == nil && audio.AnswerAudio == nil {
			failed++
			continue
		}
		if err := h.store.UpdateFlashcardAudio(r.Context(), userID, cards[i].ID, audio.QuestionAudio, audio.AnswerAudio); err != nil {
			h.logger.Error("failed to store flashcard audio", zap.String("flashcard_id", cards[i].ID), zap.Error(err))
			failed++
			continue
		}
		if audio.Complete(mode) {
			generated++
		} else {
			failed++
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"total":     len(cards),
		"generated": generated,
		"failed":    failed,
	})
}
