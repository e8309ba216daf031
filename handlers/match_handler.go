package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/siamcircuit/tournament-ops/models"
	"github.com/siamcircuit/tournament-ops/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(matchService services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

type submitResultRequest struct {
	MatchID  string `json:"match_id" validate:"required"`
	Winner   string `json:"winner" validate:"required,oneof=A B"`
	ProofURL string `json:"proof_url" validate:"required,url"`
}

// SubmitResultHandler принимает заявленный капитаном результат.
// Подтверждённый матч перезаписать нельзя.
func (h *MatchHandler) SubmitResultHandler(w http.ResponseWriter, r *http.Request) {
	var input submitResultRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if problems := validateInput(input); problems != nil {
		failedValidationResponse(w, r, problems)
		return
	}

	err := h.matchService.SubmitResult(r.Context(), input.MatchID, models.Side(input.Winner), input.ProofURL)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "result recorded"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type submitProofRequest struct {
	MatchID  string `json:"match_id" validate:"required"`
	Side     string `json:"side" validate:"required,oneof=A B"`
	ProofURL string `json:"proof_url" validate:"required,url"`
}

func (h *MatchHandler) SubmitProofHandler(w http.ResponseWriter, r *http.Request) {
	var input submitProofRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if problems := validateInput(input); problems != nil {
		failedValidationResponse(w, r, problems)
		return
	}

	err := h.matchService.SubmitProof(r.Context(), input.MatchID, models.Side(input.Side), input.ProofURL)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "proof recorded"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ConfirmResultHandler подтверждает результат и проталкивает победителя
// во внешнюю сетку. Только для администраторов.
func (h *MatchHandler) ConfirmResultHandler(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	if matchID == "" {
		badRequestResponse(w, r, errMissingMatchID)
		return
	}

	state, err := h.matchService.ConfirmResult(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": state}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type bindScheduleRequest struct {
	MatchID string    `json:"match_id" validate:"required"`
	Time    time.Time `json:"time" validate:"required"`
}

func (h *MatchHandler) BindScheduleHandler(w http.ResponseWriter, r *http.Request) {
	var input bindScheduleRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if problems := validateInput(input); problems != nil {
		failedValidationResponse(w, r, problems)
		return
	}

	if err := h.matchService.BindSchedule(r.Context(), input.MatchID, input.Time); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "schedule bound"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type bindResultChannelRequest struct {
	MatchID   string `json:"match_id" validate:"required"`
	ChannelID string `json:"channel_id" validate:"required"`
}

func (h *MatchHandler) BindResultChannelHandler(w http.ResponseWriter, r *http.Request) {
	var input bindResultChannelRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if problems := validateInput(input); problems != nil {
		failedValidationResponse(w, r, problems)
		return
	}

	if err := h.matchService.BindResultChannel(r.Context(), input.MatchID, input.ChannelID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "channel bound"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) GetByResultChannelHandler(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	if channelID == "" {
		badRequestResponse(w, r, errMissingChannelID)
		return
	}

	state, err := h.matchService.ByResultChannel(r.Context(), channelID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": state}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ListUpcomingHandler(w http.ResponseWriter, r *http.Request) {
	states, err := h.matchService.ListUpcoming(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": states}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListAwaitingChannelHandler отдаёт матчи, которым пора заводить канал
// результатов. Основной потребитель — планировщик, но ручка полезна
// и для отладки.
func (h *MatchHandler) ListAwaitingChannelHandler(w http.ResponseWriter, r *http.Request) {
	awaiting, err := h.matchService.AwaitingResultChannel(r.Context(), time.Now())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": awaiting}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
