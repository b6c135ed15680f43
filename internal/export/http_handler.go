package export

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

type Handler struct {
	service *Service
}

// NewHTTPHandler serves journal history workbooks.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	journableType := strings.TrimSpace(r.URL.Query().Get("journableType"))
	if journableType == "" {
		http.Error(w, "journableType is required", http.StatusBadRequest)
		return
	}
	journableID, err := strconv.ParseInt(r.URL.Query().Get("journableId"), 10, 64)
	if err != nil || journableID <= 0 {
		http.Error(w, "invalid journableId", http.StatusBadRequest)
		return
	}

	filename := fmt.Sprintf("%s-%d-journals.xlsx", strings.ToLower(journableType), journableID)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := h.service.WriteWorkbook(r.Context(), journableType, journableID, w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
