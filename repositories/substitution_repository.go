package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/siamcircuit/tournament-ops/models"
)

var ErrSubstitutionNotFound = errors.New("substitution not found")

type SubstitutionRepository interface {
	Create(ctx context.Context, sub *models.Substitution) error
	GetByID(ctx context.Context, id int) (*models.Substitution, error)
	UpdateStatus(ctx context.Context, id int, status models.ApprovalStatus) error
}

type postgresSubstitutionRepository struct {
	db *sql.DB
}

func NewPostgresSubstitutionRepository(db *sql.DB) SubstitutionRepository {
	return &postgresSubstitutionRepository{db: db}
}

func (r *postgresSubstitutionRepository) Create(ctx context.Context, sub *models.Substitution) error {
	query := `
		INSERT INTO substitutions (team_id, old_player, new_player, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		sub.TeamID,
		sub.OldPlayer,
		sub.NewPlayer,
		models.ApprovalPending,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return err
	}
	sub.Status = models.ApprovalPending
	return nil
}

func (r *postgresSubstitutionRepository) GetByID(ctx context.Context, id int) (*models.Substitution, error) {
	query := `
		SELECT id, team_id, old_player, new_player, status, created_at
		FROM substitutions
		WHERE id = $1`

	sub := &models.Substitution{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sub.ID,
		&sub.TeamID,
		&sub.OldPlayer,
		&sub.NewPlayer,
		&sub.Status,
		&sub.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubstitutionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (r *postgresSubstitutionRepository) UpdateStatus(ctx context.Context, id int, status models.ApprovalStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE substitutions SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSubstitutionNotFound)
}
