package handler

import (
	"net/http"

	agentsvc "github.com/miguelbenajes/HoldedConnector/internal/domain/services/agent"
	"github.com/miguelbenajes/HoldedConnector/internal/httputil"
)

// ListFavorites returns saved queries
// GET /api/ai/favorites
func (h *AgentHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := h.service.ListFavorites(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, favorites)
}

// AddFavorite saves a query
// POST /api/ai/favorites
func (h *AgentHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	var req agentsvc.AddFavoriteRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	favorite, err := h.service.AddFavorite(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, favorite)
}

// RemoveFavorite deletes a saved query
// DELETE /api/ai/favorites/{id}
func (h *AgentHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httputil.RespondError(w, http.StatusBadRequest, "invalid favorite id")
		return
	}

	if err := h.service.RemoveFavorite(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
