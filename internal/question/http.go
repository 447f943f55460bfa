package question

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	httperrors "github.com/learning-notebook/question-service/pkg/http/errors"
)

// HTTPHandlers provides the REST surface for question records.
type HTTPHandlers struct {
	service *Service
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for question endpoints.
func NewHTTPHandlers(service *Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		service: service,
		logger:  logger.With().Str("component", "question_http").Logger(),
	}
}

// Create handles POST /v1/questions
func (h *HTTPHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Request body must be a JSON object")
		return
	}

	rec, err := h.service.Create(r.Context(), raw)
	if err != nil {
		h.respondServiceError(w, r, err, "create failed")
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"question": rec,
	})
}

// List handles GET /v1/questions
func (h *HTTPHandlers) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := Filter{
		Subject:         query.Get("subject"),
		DifficultyLevel: query.Get("difficulty"),
		Limit:           intParam(query.Get("limit")),
		Offset:          intParam(query.Get("offset")),
	}

	records, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, r, err, "list failed")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"questions": records,
		"count":     len(records),
	})
}

// Get handles GET /v1/questions/{id}
func (h *HTTPHandlers) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, r, err, "get failed")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"question": rec,
	})
}

// Update handles PUT /v1/questions/{id}
func (h *HTTPHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Request body must be a JSON object")
		return
	}

	rec, err := h.service.Update(r.Context(), r.PathValue("id"), raw)
	if err != nil {
		h.respondServiceError(w, r, err, "update failed")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"question": rec,
	})
}

// Delete handles DELETE /v1/questions/{id}
func (h *HTTPHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, r, err, "delete failed")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// Import handles POST /v1/questions/import. The body is either a bare JSON
// array of payloads or {"questions":[...]}; both shapes occur in the wild.
func (h *HTTPHandlers) Import(w http.ResponseWriter, r *http.Request) {
	payloads, ok := decodeImportBody(r)
	if !ok {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Request body must be a JSON array of question objects")
		return
	}

	result := h.service.Import(r.Context(), payloads)

	h.respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result":  result,
	})
}

func decodeImportBody(r *http.Request) ([]map[string]any, bool) {
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, false
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		var wrapper struct {
			Questions []json.RawMessage `json:"questions"`
		}
		if err := json.Unmarshal(body, &wrapper); err != nil || wrapper.Questions == nil {
			return nil, false
		}
		items = wrapper.Questions
	}

	// Non-object elements decode to nil maps; the importer tallies those
	// as individual failures instead of rejecting the batch.
	payloads := make([]map[string]any, len(items))
	for i, item := range items {
		var m map[string]any
		if err := json.Unmarshal(item, &m); err == nil {
			payloads[i] = m
		}
	}
	return payloads, true
}

func intParam(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

// respondServiceError maps domain errors onto HTTP statuses. Storage error
// detail stays in the server log; clients get a generic message.
func (h *HTTPHandlers) respondServiceError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, ErrInvalidPayload):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeValidationFailed, err.Error())
	case errors.Is(err, ErrNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "Question not found")
	case errors.Is(err, ErrConflict):
		httperrors.RespondConflict(w, httperrors.ErrCodeConflict, "Question id already exists")
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg(logMsg)
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeStorageError, "Storage operation failed")
	}
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}
