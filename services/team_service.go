package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/siamcircuit/tournament-ops/models"
	"github.com/siamcircuit/tournament-ops/repositories"
	"github.com/siamcircuit/tournament-ops/storage"
)

type RegisterTeamInput struct {
	Name             string   `json:"name" validate:"required,min=3,max=100"`
	LogoURL          *string  `json:"logo,omitempty" validate:"omitempty,uri"`
	CaptainDiscordID string   `json:"captain_discord_id" validate:"required,numeric,min=17,max=20"`
	Players          []string `json:"players" validate:"required,min=1,max=5,dive,numeric,min=17,max=20"`
}

type TeamService interface {
	Register(ctx context.Context, input RegisterTeamInput) (*models.Team, error)
	GetByID(ctx context.Context, id int) (*models.Team, error)
	List(ctx context.Context) ([]*models.Team, error)
	// SyncParticipant заводит участника во внешней сетке и однократно
	// привязывает его id к команде.
	SyncParticipant(ctx context.Context, teamID int) (*models.Team, error)
	UploadLogo(ctx context.Context, teamID int, filename, contentType string, file io.Reader) (string, error)
	ResolveByParticipantIDs(ctx context.Context, participantIDs []string) (map[string]*models.Team, error)
}

type teamService struct {
	teamRepo repositories.TeamRepository
	bracket  BracketClient
	uploader storage.FileUploader
}

func NewTeamService(teamRepo repositories.TeamRepository, bracket BracketClient, uploader storage.FileUploader) TeamService {
	return &teamService{
		teamRepo: teamRepo,
		bracket:  bracket,
		uploader: uploader,
	}
}

func (s *teamService) Register(ctx context.Context, input RegisterTeamInput) (*models.Team, error) {
	team := &models.Team{
		Name:             input.Name,
		LogoURL:          input.LogoURL,
		CaptainDiscordID: input.CaptainDiscordID,
		Roster:           input.Players,
	}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNameConflict) {
			return nil, ErrTeamNameConflict
		}
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	return team, nil
}

func (s *teamService) GetByID(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return team, nil
}

func (s *teamService) List(ctx context.Context) ([]*models.Team, error) {
	return s.teamRepo.List(ctx, 200)
}

func (s *teamService) SyncParticipant(ctx context.Context, teamID int) (*models.Team, error) {
	team, err := s.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.ChallongeParticipantID != nil {
		return nil, ErrParticipantAlreadySynced
	}

	participantID, err := s.bracket.CreateParticipant(ctx, team.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	if err := s.teamRepo.SetParticipantID(ctx, teamID, participantID); err != nil {
		if errors.Is(err, repositories.ErrParticipantAlreadyBound) {
			return nil, ErrParticipantAlreadySynced
		}
		return nil, fmt.Errorf("failed to store participant id for team %d: %w", teamID, err)
	}
	team.ChallongeParticipantID = &participantID
	return team, nil
}

func (s *teamService) UploadLogo(ctx context.Context, teamID int, filename, contentType string, file io.Reader) (string, error) {
	if _, err := s.GetByID(ctx, teamID); err != nil {
		return "", err
	}

	key := fmt.Sprintf("team-logos/%s%s", uuid.NewString(), filepath.Ext(filename))
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return "", fmt.Errorf("failed to upload team logo: %w", err)
	}
	if err := s.teamRepo.UpdateLogo(ctx, teamID, result.Location); err != nil {
		return "", err
	}
	return result.Location, nil
}

func (s *teamService) ResolveByParticipantIDs(ctx context.Context, participantIDs []string) (map[string]*models.Team, error) {
	teams, err := s.teamRepo.ListByParticipantIDs(ctx, participantIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve teams by participant ids: %w", err)
	}
	resolved := make(map[string]*models.Team, len(teams))
	for _, t := range teams {
		if t.ChallongeParticipantID != nil {
			resolved[*t.ChallongeParticipantID] = t
		}
	}
	return resolved, nil
}
