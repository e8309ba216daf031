package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/siamcircuit/tournament-ops/models"
	"github.com/siamcircuit/tournament-ops/services"
)

// stubMatchService отдаёт заранее заданные ошибки, чтобы проверить
// маппинг сервисных ошибок в HTTP-статусы.
type stubMatchService struct {
	submitErr  error
	confirmErr error
	bindErr    error
}

func (s *stubMatchService) SubmitResult(_ context.Context, _ string, _ models.Side, _ string) error {
	return s.submitErr
}

func (s *stubMatchService) SubmitProof(_ context.Context, _ string, _ models.Side, _ string) error {
	return s.submitErr
}

func (s *stubMatchService) ConfirmResult(_ context.Context, id string) (*models.MatchState, error) {
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	return &models.MatchState{BracketMatchID: id, Status: models.MatchStatusCompleted}, nil
}

func (s *stubMatchService) BindSchedule(_ context.Context, _ string, _ time.Time) error { return nil }

func (s *stubMatchService) BindResultChannel(_ context.Context, _, _ string) error {
	return s.bindErr
}

func (s *stubMatchService) ByResultChannel(_ context.Context, _ string) (*models.MatchState, error) {
	return nil, services.ErrMatchNotFound
}

func (s *stubMatchService) ListUpcoming(_ context.Context) ([]*models.MatchState, error) {
	return []*models.MatchState{}, nil
}

func (s *stubMatchService) AwaitingResultChannel(_ context.Context, _ time.Time) ([]services.AwaitingMatch, error) {
	return []services.AwaitingMatch{}, nil
}

func newMatchRouter(svc services.MatchService) *chi.Mux {
	h := NewMatchHandler(svc)
	router := chi.NewRouter()
	router.Post("/matches/result", h.SubmitResultHandler)
	router.Post("/matches/result-channel", h.BindResultChannelHandler)
	router.Post("/matches/{matchID}/confirm", h.ConfirmResultHandler)
	router.Get("/matches/by-channel/{channelID}", h.GetByResultChannelHandler)
	return router
}

func doRequest(router *chi.Mux, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitResultHandlerStatuses(t *testing.T) {
	t.Parallel()

	validBody := `{"match_id": "11", "winner": "A", "proof_url": "https://img.example/a.png"}`

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		rec := doRequest(newMatchRouter(&stubMatchService{}), http.MethodPost, "/matches/result", validBody)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()
		rec := doRequest(newMatchRouter(&stubMatchService{}), http.MethodPost, "/matches/result", `{"match_id":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid winner side", func(t *testing.T) {
		t.Parallel()
		body := `{"match_id": "11", "winner": "C", "proof_url": "https://img.example/a.png"}`
		rec := doRequest(newMatchRouter(&stubMatchService{}), http.MethodPost, "/matches/result", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("completed match conflict", func(t *testing.T) {
		t.Parallel()
		svc := &stubMatchService{submitErr: services.ErrMatchAlreadyCompleted}
		rec := doRequest(newMatchRouter(svc), http.MethodPost, "/matches/result", validBody)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestConfirmResultHandlerStatuses(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		rec := doRequest(newMatchRouter(&stubMatchService{}), http.MethodPost, "/matches/11/confirm", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"completed"`)
	})

	t.Run("nothing to confirm", func(t *testing.T) {
		t.Parallel()
		svc := &stubMatchService{confirmErr: services.ErrNoResultToConfirm}
		rec := doRequest(newMatchRouter(svc), http.MethodPost, "/matches/11/confirm", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bracket authority down", func(t *testing.T) {
		t.Parallel()
		svc := &stubMatchService{confirmErr: services.ErrUpstreamUnavailable}
		rec := doRequest(newMatchRouter(svc), http.MethodPost, "/matches/11/confirm", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("unknown match", func(t *testing.T) {
		t.Parallel()
		svc := &stubMatchService{confirmErr: services.ErrMatchNotFound}
		rec := doRequest(newMatchRouter(svc), http.MethodPost, "/matches/11/confirm", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestBindResultChannelHandlerConflict(t *testing.T) {
	t.Parallel()

	body := `{"match_id": "11", "channel_id": "chan-2"}`
	svc := &stubMatchService{bindErr: services.ErrChannelBindingConflict}
	rec := doRequest(newMatchRouter(svc), http.MethodPost, "/matches/result-channel", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetByResultChannelNotFound(t *testing.T) {
	t.Parallel()

	rec := doRequest(newMatchRouter(&stubMatchService{}), http.MethodGet, "/matches/by-channel/chan-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
