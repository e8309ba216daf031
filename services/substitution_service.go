package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/siamcircuit/tournament-ops/models"
	"github.com/siamcircuit/tournament-ops/repositories"
)

type SubmitSubstitutionInput struct {
	TeamID    int    `json:"team_id" validate:"required"`
	OldPlayer string `json:"old_player" validate:"required,numeric,min=17,max=20"`
	NewPlayer string `json:"new_player" validate:"required,numeric,min=17,max=20"`
}

type SubstitutionService interface {
	Submit(ctx context.Context, input SubmitSubstitutionInput) (*models.Substitution, error)
	// Approve подменяет старого игрока на нового в ростере команды.
	Approve(ctx context.Context, id int) ([]string, error)
	Reject(ctx context.Context, id int) error
}

type substitutionService struct {
	subRepo  repositories.SubstitutionRepository
	teamRepo repositories.TeamRepository
}

func NewSubstitutionService(subRepo repositories.SubstitutionRepository, teamRepo repositories.TeamRepository) SubstitutionService {
	return &substitutionService{subRepo: subRepo, teamRepo: teamRepo}
}

func (s *substitutionService) Submit(ctx context.Context, input SubmitSubstitutionInput) (*models.Substitution, error) {
	if _, err := s.teamRepo.GetByID(ctx, input.TeamID); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}

	sub := &models.Substitution{
		TeamID:    input.TeamID,
		OldPlayer: input.OldPlayer,
		NewPlayer: input.NewPlayer,
	}
	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create substitution: %w", err)
	}
	return sub, nil
}

func (s *substitutionService) Approve(ctx context.Context, id int) ([]string, error) {
	sub, err := s.subRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrSubstitutionNotFound) {
			return nil, ErrSubstitutionNotFound
		}
		return nil, err
	}

	team, err := s.teamRepo.GetByID(ctx, sub.TeamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}

	idx := -1
	for i, member := range team.Roster {
		if member == sub.OldPlayer {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, ErrPlayerNotInRoster
	}

	roster := make([]string, len(team.Roster))
	copy(roster, team.Roster)
	roster[idx] = sub.NewPlayer

	if err := s.teamRepo.UpdateRoster(ctx, team.ID, roster); err != nil {
		return nil, fmt.Errorf("failed to update roster for team %d: %w", team.ID, err)
	}
	if err := s.subRepo.UpdateStatus(ctx, id, models.ApprovalApproved); err != nil {
		return nil, err
	}
	return roster, nil
}

func (s *substitutionService) Reject(ctx context.Context, id int) error {
	if err := s.subRepo.UpdateStatus(ctx, id, models.ApprovalRejected); err != nil {
		if errors.Is(err, repositories.ErrSubstitutionNotFound) {
			return ErrSubstitutionNotFound
		}
		return err
	}
	return nil
}
