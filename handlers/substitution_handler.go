package handlers

import (
	"net/http"

	"github.com/siamcircuit/tournament-ops/services"
)

type SubstitutionHandler struct {
	subService services.SubstitutionService
}

func NewSubstitutionHandler(subService services.SubstitutionService) *SubstitutionHandler {
	return &SubstitutionHandler{subService: subService}
}

func (h *SubstitutionHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	var input services.SubmitSubstitutionInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if problems := validateInput(input); problems != nil {
		failedValidationResponse(w, r, problems)
		return
	}

	sub, err := h.subService.Submit(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"substitution": sub}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SubstitutionHandler) ApproveHandler(w http.ResponseWriter, r *http.Request) {
	subID, err := getIDFromURL(r, "substitutionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	roster, err := h.subService.Approve(r.Context(), subID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "approved", "roster": roster}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SubstitutionHandler) RejectHandler(w http.ResponseWriter, r *http.Request) {
	subID, err := getIDFromURL(r, "substitutionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.subService.Reject(r.Context(), subID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "rejected"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
