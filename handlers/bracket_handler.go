package handlers

import (
	"net/http"

	"github.com/siamcircuit/tournament-ops/services"
)

type BracketHandler struct {
	bracketView services.BracketViewService
}

func NewBracketHandler(bracketView services.BracketViewService) *BracketHandler {
	return &BracketHandler{bracketView: bracketView}
}

// GetBracketHandler отдаёт сетку, сгруппированную по раундам, с именами
// команд и локальными статусами матчей.
func (h *BracketHandler) GetBracketHandler(w http.ResponseWriter, r *http.Request) {
	rounds, err := h.bracketView.Rounds(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, rounds, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
