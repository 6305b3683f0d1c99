package handlers

import (
	"net/http"

	"github.com/avvvet/matchvote-services/internal/matchsvc/service"
)

func (h *Handler) CastVote(w http.ResponseWriter, r *http.Request) {
	var input service.VoteInput
	if err := readJSON(w, r, &input); err != nil {
		badRequest(w, err)
		return
	}
	input.Voter = clientIP(r)

	match, err := h.votes.CastVote(r.Context(), input)
	if err != nil {
		serviceError(w, r, err, "Failed to vote")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: match})
}
