package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/siamcircuit/tournament-ops/models"
	"github.com/siamcircuit/tournament-ops/repositories"
)

// AwaitingMatch — матч, которому пора заводить канал для результатов:
// победителя ещё нет, время матча прошло, канал не привязан.
type AwaitingMatch struct {
	Match models.BracketMatch
	TeamA *models.Team
	TeamB *models.Team
}

// MatchService — машина состояний жизненного цикла матча:
// scheduled → awaiting_proof → completed, назад переходов нет.
type MatchService interface {
	SubmitResult(ctx context.Context, bracketMatchID string, side models.Side, proofURL string) error
	SubmitProof(ctx context.Context, bracketMatchID string, side models.Side, proofURL string) error
	ConfirmResult(ctx context.Context, bracketMatchID string) (*models.MatchState, error)
	BindSchedule(ctx context.Context, bracketMatchID string, scheduledAt time.Time) error
	BindResultChannel(ctx context.Context, bracketMatchID, channelID string) error
	ByResultChannel(ctx context.Context, channelID string) (*models.MatchState, error)
	ListUpcoming(ctx context.Context) ([]*models.MatchState, error)
	AwaitingResultChannel(ctx context.Context, now time.Time) ([]AwaitingMatch, error)
}

type matchService struct {
	stateRepo  repositories.MatchStateRepository
	teamRepo   repositories.TeamRepository
	bracket    BracketClient
	events     EventBroadcaster
	propagator ResultPropagator
	logger     *slog.Logger
}

func NewMatchService(
	stateRepo repositories.MatchStateRepository,
	teamRepo repositories.TeamRepository,
	bracket BracketClient,
	events EventBroadcaster,
	logger *slog.Logger,
) *matchService {
	return &matchService{
		stateRepo: stateRepo,
		teamRepo:  teamRepo,
		bracket:   bracket,
		events:    events,
		logger:    logger,
	}
}

// SetPropagator навешивает обработчик Pass C. Планировщик зависит от
// сервиса, поэтому связывается после конструирования обоих.
func (s *matchService) SetPropagator(p ResultPropagator) {
	s.propagator = p
}

func (s *matchService) SubmitResult(ctx context.Context, bracketMatchID string, side models.Side, proofURL string) error {
	if !side.Valid() {
		return ErrInvalidWinnerSide
	}
	if err := validateProofURL(proofURL); err != nil {
		return err
	}

	err := s.stateRepo.UpsertResult(ctx, bracketMatchID, side, proofURL)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchCompleted) {
			return ErrMatchAlreadyCompleted
		}
		return fmt.Errorf("failed to record result for match %s: %w", bracketMatchID, err)
	}
	return nil
}

func (s *matchService) SubmitProof(ctx context.Context, bracketMatchID string, side models.Side, proofURL string) error {
	if !side.Valid() {
		return ErrInvalidWinnerSide
	}
	if err := validateProofURL(proofURL); err != nil {
		return err
	}

	if err := s.stateRepo.UpsertProof(ctx, bracketMatchID, side, proofURL); err != nil {
		return fmt.Errorf("failed to record proof for match %s: %w", bracketMatchID, err)
	}
	return nil
}

// ConfirmResult подтверждает локально заявленный результат и проталкивает
// его во внешнюю сетку. Если сетка уже знает победителя, повторной отправки
// нет — локальный статус просто сверяется с авторитетом. При ошибке сетки
// локальное состояние не меняется, вызов повторяем.
func (s *matchService) ConfirmResult(ctx context.Context, bracketMatchID string) (*models.MatchState, error) {
	state, err := s.stateRepo.GetByBracketMatchID(ctx, bracketMatchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchStateNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to load match %s: %w", bracketMatchID, err)
	}
	if state.Result == nil {
		return nil, ErrNoResultToConfirm
	}

	bracketMatch, err := s.bracket.GetMatch(ctx, bracketMatchID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	if !bracketMatch.Decided() {
		winnerParticipantID := bracketMatch.ParticipantA
		if *state.Result == models.SideB {
			winnerParticipantID = bracketMatch.ParticipantB
		}
		if winnerParticipantID == nil || *winnerParticipantID == "" {
			return nil, ErrWinnerUnresolved
		}
		if err := s.bracket.SubmitWinner(ctx, bracketMatchID, *winnerParticipantID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
	}

	if err := s.stateRepo.SetStatus(ctx, bracketMatchID, models.MatchStatusCompleted); err != nil {
		return nil, fmt.Errorf("failed to complete match %s: %w", bracketMatchID, err)
	}
	state.Status = models.MatchStatusCompleted

	if s.events != nil {
		s.events.BroadcastEvent("match_confirmed", map[string]interface{}{
			"id":     bracketMatchID,
			"result": *state.Result,
		})
	}
	if s.propagator != nil {
		s.propagator.PropagateResult(ctx, bracketMatchID)
	}
	return state, nil
}

func (s *matchService) BindSchedule(ctx context.Context, bracketMatchID string, scheduledAt time.Time) error {
	if err := s.stateRepo.UpsertSchedule(ctx, bracketMatchID, scheduledAt); err != nil {
		return fmt.Errorf("failed to bind schedule for match %s: %w", bracketMatchID, err)
	}
	if s.events != nil {
		s.events.BroadcastEvent("match_created", map[string]interface{}{
			"id":   bracketMatchID,
			"time": scheduledAt,
		})
	}
	return nil
}

func (s *matchService) BindResultChannel(ctx context.Context, bracketMatchID, channelID string) error {
	stored, err := s.stateRepo.BindResultChannel(ctx, bracketMatchID, channelID)
	if err != nil {
		return fmt.Errorf("failed to bind result channel for match %s: %w", bracketMatchID, err)
	}
	if stored != channelID {
		// Привязка однократная: второй, другой канал — повод разобраться,
		// а не молча перезаписать.
		s.logger.Warn("conflicting result channel binding",
			slog.String("match_id", bracketMatchID),
			slog.String("bound_channel", stored),
			slog.String("requested_channel", channelID))
		return ErrChannelBindingConflict
	}
	return nil
}

func (s *matchService) ByResultChannel(ctx context.Context, channelID string) (*models.MatchState, error) {
	state, err := s.stateRepo.GetByResultChannelID(ctx, channelID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchStateNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return state, nil
}

func (s *matchService) ListUpcoming(ctx context.Context) ([]*models.MatchState, error) {
	states, err := s.stateRepo.ListUpcoming(ctx, time.Now(), 50)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming matches: %w", err)
	}
	return states, nil
}

// AwaitingResultChannel отдаёт матчи без победителя, чьё время уже прошло
// и канал для результатов ещё не заведён. Команды резолвятся одним батчем
// по множеству participant id, не по матчу за раз.
func (s *matchService) AwaitingResultChannel(ctx context.Context, now time.Time) ([]AwaitingMatch, error) {
	bracketMatches, err := s.bracket.ListMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	ids := make([]string, 0, len(bracketMatches))
	for _, m := range bracketMatches {
		if !m.Decided() {
			ids = append(ids, m.ID)
		}
	}
	states, err := s.stateRepo.ListByBracketMatchIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load local match states: %w", err)
	}

	participantIDs := make([]string, 0)
	pending := make([]models.BracketMatch, 0)
	for _, m := range bracketMatches {
		if m.Decided() {
			continue
		}
		state := states[m.ID]
		if state != nil && state.ResultChannelID != nil {
			continue
		}
		scheduledAt := m.ScheduledAt
		if state != nil && state.ScheduledAt != nil {
			scheduledAt = state.ScheduledAt
		}
		if scheduledAt == nil || scheduledAt.After(now) {
			continue
		}
		pending = append(pending, m)
		if m.ParticipantA != nil {
			participantIDs = append(participantIDs, *m.ParticipantA)
		}
		if m.ParticipantB != nil {
			participantIDs = append(participantIDs, *m.ParticipantB)
		}
	}
	if len(pending) == 0 {
		return []AwaitingMatch{}, nil
	}

	teams, err := s.teamRepo.ListByParticipantIDs(ctx, participantIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve teams: %w", err)
	}
	byParticipant := make(map[string]*models.Team, len(teams))
	for _, t := range teams {
		if t.ChallongeParticipantID != nil {
			byParticipant[*t.ChallongeParticipantID] = t
		}
	}

	awaiting := make([]AwaitingMatch, 0, len(pending))
	for _, m := range pending {
		am := AwaitingMatch{Match: m}
		if m.ParticipantA != nil {
			am.TeamA = byParticipant[*m.ParticipantA]
		}
		if m.ParticipantB != nil {
			am.TeamB = byParticipant[*m.ParticipantB]
		}
		awaiting = append(awaiting, am)
	}
	return awaiting, nil
}

func validateProofURL(proofURL string) error {
	u, err := url.Parse(proofURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ErrInvalidProofURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidProofURL
	}
	return nil
}
