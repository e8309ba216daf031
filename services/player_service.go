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

type RegisterPlayerInput struct {
	Name           string  `json:"name" validate:"required,min=2,max=100"`
	IGN            string  `json:"ign" validate:"required,min=2,max=100"`
	DiscordID      string  `json:"discord_id" validate:"required,numeric,min=17,max=20"`
	RiotID         string  `json:"riot_id" validate:"required,min=3,max=100"`
	EligibilityDoc *string `json:"eligibility_doc,omitempty" validate:"omitempty,uri"`
}

type PlayerService interface {
	Register(ctx context.Context, input RegisterPlayerInput) (*models.Player, error)
	ListPending(ctx context.Context) ([]*models.Player, error)
	Approve(ctx context.Context, id int) error
	Reject(ctx context.Context, id int) error
	UploadEligibilityDoc(ctx context.Context, playerID int, filename, contentType string, file io.Reader) (string, error)
}

type playerService struct {
	playerRepo repositories.PlayerRepository
	uploader   storage.FileUploader
}

func NewPlayerService(playerRepo repositories.PlayerRepository, uploader storage.FileUploader) PlayerService {
	return &playerService{playerRepo: playerRepo, uploader: uploader}
}

func (s *playerService) Register(ctx context.Context, input RegisterPlayerInput) (*models.Player, error) {
	player := &models.Player{
		Name:              input.Name,
		IGN:               input.IGN,
		DiscordID:         input.DiscordID,
		RiotID:            input.RiotID,
		EligibilityDocURL: input.EligibilityDoc,
	}
	if err := s.playerRepo.Create(ctx, player); err != nil {
		if errors.Is(err, repositories.ErrPlayerConflict) {
			return nil, ErrPlayerConflict
		}
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	return player, nil
}

func (s *playerService) ListPending(ctx context.Context) ([]*models.Player, error) {
	return s.playerRepo.ListPending(ctx, 200)
}

func (s *playerService) Approve(ctx context.Context, id int) error {
	return s.setStatus(ctx, id, models.ApprovalApproved)
}

func (s *playerService) Reject(ctx context.Context, id int) error {
	return s.setStatus(ctx, id, models.ApprovalRejected)
}

func (s *playerService) setStatus(ctx context.Context, id int, status models.ApprovalStatus) error {
	if err := s.playerRepo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		return err
	}
	return nil
}

func (s *playerService) UploadEligibilityDoc(ctx context.Context, playerID int, filename, contentType string, file io.Reader) (string, error) {
	if _, err := s.playerRepo.GetByID(ctx, playerID); err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return "", ErrPlayerNotFound
		}
		return "", err
	}

	key := fmt.Sprintf("eligibility-docs/%s%s", uuid.NewString(), filepath.Ext(filename))
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return "", fmt.Errorf("failed to upload eligibility doc: %w", err)
	}
	if err := s.playerRepo.SetEligibilityDoc(ctx, playerID, result.Location); err != nil {
		return "", err
	}
	return result.Location, nil
}
