package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/siamcircuit/tournament-ops/models"
	"github.com/siamcircuit/tournament-ops/repositories"
)

// MatchView — матч сетки, слитый с локальным состоянием и с именами
// команд вместо participant id. Нерезолвленный участник показывается
// сырым id; пустой слот с известным матчем-предшественником — как
// "Winner of Match #<id>".
type MatchView struct {
	ID      string             `json:"id"`
	Round   string             `json:"round"`
	TeamA   string             `json:"team_a"`
	TeamB   string             `json:"team_b"`
	Time    *time.Time         `json:"time,omitempty"`
	Status  models.MatchStatus `json:"status"`
	Result  *models.Side       `json:"result,omitempty"`
	PrereqA *string            `json:"-"`
	PrereqB *string            `json:"-"`
}

type BracketViewService interface {
	// Rounds возвращает сетку, сгруппированную по раундам.
	Rounds(ctx context.Context) (map[string][]MatchView, error)
}

type bracketViewService struct {
	bracket   BracketClient
	stateRepo repositories.MatchStateRepository
	teamRepo  repositories.TeamRepository
	group     singleflight.Group
}

func NewBracketViewService(
	bracket BracketClient,
	stateRepo repositories.MatchStateRepository,
	teamRepo repositories.TeamRepository,
) BracketViewService {
	return &bracketViewService{
		bracket:   bracket,
		stateRepo: stateRepo,
		teamRepo:  teamRepo,
	}
}

func (s *bracketViewService) Rounds(ctx context.Context) (map[string][]MatchView, error) {
	// Одновременные запросы страницы сетки схлопываются в один поход
	// во внешний сервис.
	result, err, _ := s.group.Do("bracket", func() (interface{}, error) {
		return s.buildRounds(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string][]MatchView), nil
}

func (s *bracketViewService) buildRounds(ctx context.Context) (map[string][]MatchView, error) {
	bracketMatches, err := s.bracket.ListMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	ids := make([]string, 0, len(bracketMatches))
	participantIDs := make([]string, 0, 2*len(bracketMatches))
	for _, m := range bracketMatches {
		ids = append(ids, m.ID)
		if m.ParticipantA != nil {
			participantIDs = append(participantIDs, *m.ParticipantA)
		}
		if m.ParticipantB != nil {
			participantIDs = append(participantIDs, *m.ParticipantB)
		}
	}

	states, err := s.stateRepo.ListByBracketMatchIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load local match states: %w", err)
	}

	teams, err := s.teamRepo.ListByParticipantIDs(ctx, participantIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve teams: %w", err)
	}
	names := make(map[string]string, len(teams))
	for _, t := range teams {
		if t.ChallongeParticipantID != nil {
			names[*t.ChallongeParticipantID] = t.Name
		}
	}

	rounds := make(map[string][]MatchView)
	for _, m := range bracketMatches {
		view := MatchView{
			ID:      m.ID,
			Round:   m.Round,
			TeamA:   displayName(m.ParticipantA, m.PrereqMatchA, names),
			TeamB:   displayName(m.ParticipantB, m.PrereqMatchB, names),
			Time:    m.ScheduledAt,
			Status:  models.MatchStatusScheduled,
			PrereqA: m.PrereqMatchA,
			PrereqB: m.PrereqMatchB,
		}
		if state := states[m.ID]; state != nil {
			view.Status = state.Status
			view.Result = state.Result
			if state.ScheduledAt != nil {
				view.Time = state.ScheduledAt
			}
		}
		if m.Decided() && view.Status != models.MatchStatusCompleted {
			// Сетка — авторитет: раз победитель назначен, матч завершён,
			// даже если локальное подтверждение не отработало.
			view.Status = models.MatchStatusCompleted
		}
		rounds[m.Round] = append(rounds[m.Round], view)
	}
	return rounds, nil
}

func displayName(participantID, prereqMatchID *string, names map[string]string) string {
	if participantID != nil && *participantID != "" {
		if name, ok := names[*participantID]; ok {
			return name
		}
		return *participantID
	}
	if prereqMatchID != nil && *prereqMatchID != "" {
		return fmt.Sprintf("Winner of Match #%s", *prereqMatchID)
	}
	return "TBD"
}
