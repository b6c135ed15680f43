package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/openhistory/journalkit/internal/auth"
	"github.com/openhistory/journalkit/internal/domain"
)

// JournableResolver turns a (type, id) pair from a request into a live
// journable. The engine core never resolves entities itself; the surrounding
// application supplies this.
type JournableResolver interface {
	Resolve(ctx context.Context, journableType string, journableID int64) (domain.Journable, error)
}

type Handler struct {
	service  *Service
	resolver JournableResolver
}

// NewHTTPHandler creates the JSON surface over the journal service.
func NewHTTPHandler(service *Service, resolver JournableResolver) http.Handler {
	return &Handler{service: service, resolver: resolver}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/reassign"):
		h.handleReassign(w, r)
	case r.Method == http.MethodPost:
		h.handleRecord(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/pending"):
		h.handlePendingChanges(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/diff"):
		h.handleDiff(w, r)
	case r.Method == http.MethodGet:
		h.handleHistory(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type recordPayload struct {
	JournableType string `json:"journableType"`
	JournableID   int64  `json:"journableId"`
	UserID        *int64 `json:"userId"`
	Notes         string `json:"notes"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload recordPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	userID, ok := auth.UserIDFromContext(r.Context())
	if payload.UserID != nil {
		userID = *payload.UserID
		ok = true
	}
	if !ok {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	journable, err := h.resolver.Resolve(r.Context(), payload.JournableType, payload.JournableID)
	if err != nil {
		http.Error(w, fmt.Sprintf("unknown journable: %v", err), http.StatusNotFound)
		return
	}

	journal, err := h.service.Record(r.Context(), journable, userID, payload.Notes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if journal == nil {
		writeJSON(w, http.StatusOK, map[string]any{"created": false})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"created": true, "journal": journal})
}

func (h *Handler) handlePendingChanges(w http.ResponseWriter, r *http.Request) {
	journableType, journableID, err := journableParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	journable, err := h.resolver.Resolve(r.Context(), journableType, journableID)
	if err != nil {
		http.Error(w, fmt.Sprintf("unknown journable: %v", err), http.StatusNotFound)
		return
	}

	pending, err := h.service.HasPendingChanges(r.Context(), journable)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"pendingChanges": pending})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	journableType, journableID, err := journableParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries, err := h.service.History(r.Context(), journableType, journableID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (h *Handler) handleDiff(w http.ResponseWriter, r *http.Request) {
	journableType, journableID, err := journableParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fromVersion, err := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
	if err != nil || fromVersion < 0 {
		http.Error(w, "invalid from version", http.StatusBadRequest)
		return
	}
	toVersion, err := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64)
	if err != nil || toVersion < 1 {
		http.Error(w, "invalid to version", http.StatusBadRequest)
		return
	}

	diff, err := h.service.Diff(r.Context(), journableType, journableID, fromVersion, toVersion)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, diff)
}

type reassignPayload struct {
	FromUserID int64 `json:"fromUserId"`
	ToUserID   int64 `json:"toUserId"`
}

func (h *Handler) handleReassign(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload reassignPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if payload.FromUserID == 0 || payload.ToUserID == 0 {
		http.Error(w, "fromUserId and toUserId are required", http.StatusBadRequest)
		return
	}

	if err := h.service.ReassignAuthorship(r.Context(), payload.FromUserID, payload.ToUserID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"reassigned": true})
}

func journableParams(r *http.Request) (string, int64, error) {
	journableType := strings.TrimSpace(r.URL.Query().Get("journableType"))
	if journableType == "" {
		return "", 0, fmt.Errorf("journableType is required")
	}
	journableID, err := strconv.ParseInt(r.URL.Query().Get("journableId"), 10, 64)
	if err != nil || journableID <= 0 {
		return "", 0, fmt.Errorf("invalid journableId")
	}
	return journableType, journableID, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Headers are already written; nothing sensible left to do.
		return
	}
}
