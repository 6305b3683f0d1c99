package handlers

import (
	"errors"
	"net/http"

	"github.com/avvvet/matchvote-services/internal/matchsvc/models"
	"github.com/avvvet/matchvote-services/internal/matchsvc/service"
)

type listRequest struct {
	Count *int `json:"count"`
}

// ListMatches answers POST /match. An empty body lists every match.
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if err := readJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		badRequest(w, err)
		return
	}

	limit := 0
	if req.Count != nil {
		if *req.Count < 0 {
			errorResponse(w, http.StatusBadRequest, "count must not be negative")
			return
		}
		limit = *req.Count
	}

	matches, err := h.matches.ListMatches(r.Context(), limit)
	if err != nil {
		serviceError(w, r, err, "Failed to fetch matches")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: matches})
}

func (h *Handler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var input service.CreateMatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequest(w, err)
		return
	}

	match, err := h.matches.CreateMatch(r.Context(), input)
	if err != nil {
		serviceError(w, r, err, "Failed to create match")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: match})
}

// BulkUpdate answers the legacy UPDATE /match call.
func (h *Handler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var input service.BulkUpdateInput
	if err := readJSON(w, r, &input); err != nil {
		badRequest(w, err)
		return
	}

	match, err := h.matches.BulkUpdate(r.Context(), input)
	if err != nil {
		serviceError(w, r, err, "Failed to update match")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: match})
}

func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	gameID, err := gameIDParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	match, err := h.matches.GetMatch(r.Context(), gameID)
	if err != nil {
		serviceError(w, r, err, "Failed to fetch match")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: match})
}

func (h *Handler) UpdateMatch(w http.ResponseWriter, r *http.Request) {
	gameID, err := gameIDParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	var patch models.MatchPatch
	if err := readJSON(w, r, &patch); err != nil && !errors.Is(err, errEmptyBody) {
		badRequest(w, err)
		return
	}

	match, err := h.matches.UpdateMatch(r.Context(), gameID, patch)
	if err != nil {
		serviceError(w, r, err, "Failed to update match")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: match})
}

func (h *Handler) DeleteMatch(w http.ResponseWriter, r *http.Request) {
	gameID, err := gameIDParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	match, err := h.matches.DeleteMatch(r.Context(), gameID)
	if err != nil {
		serviceError(w, r, err, "Failed to delete match")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: match})
}

func (h *Handler) Tally(w http.ResponseWriter, r *http.Request) {
	gameID, err := gameIDParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	tally, err := h.votes.Tally(r.Context(), gameID)
	if err != nil {
		serviceError(w, r, err, "Failed to tally votes")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: tally})
}
