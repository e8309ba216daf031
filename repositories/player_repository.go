package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/siamcircuit/tournament-ops/models"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrPlayerConflict = errors.New("player with same discord id or riot id already exists")
)

type PlayerRepository interface {
	Create(ctx context.Context, player *models.Player) error
	GetByID(ctx context.Context, id int) (*models.Player, error)
	ListPending(ctx context.Context, limit int) ([]*models.Player, error)
	UpdateStatus(ctx context.Context, id int, status models.ApprovalStatus) error
	SetEligibilityDoc(ctx context.Context, id int, docURL string) error
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) Create(ctx context.Context, player *models.Player) error {
	query := `
		INSERT INTO players (name, ign, discord_id, riot_id, eligibility_doc_url, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		player.Name,
		player.IGN,
		player.DiscordID,
		player.RiotID,
		player.EligibilityDocURL,
		models.ApprovalPending,
	).Scan(&player.ID, &player.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrPlayerConflict
		}
		return err
	}
	player.Status = models.ApprovalPending
	return nil
}

func (r *postgresPlayerRepository) GetByID(ctx context.Context, id int) (*models.Player, error) {
	query := `
		SELECT id, name, ign, discord_id, riot_id, eligibility_doc_url, status, created_at
		FROM players
		WHERE id = $1`

	player := &models.Player{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&player.ID,
		&player.Name,
		&player.IGN,
		&player.DiscordID,
		&player.RiotID,
		&player.EligibilityDocURL,
		&player.Status,
		&player.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return player, nil
}

func (r *postgresPlayerRepository) ListPending(ctx context.Context, limit int) ([]*models.Player, error) {
	query := `
		SELECT id, name, ign, discord_id, riot_id, eligibility_doc_url, status, created_at
		FROM players
		WHERE status = $1
		ORDER BY id ASC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, models.ApprovalPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := make([]*models.Player, 0)
	for rows.Next() {
		player := &models.Player{}
		if scanErr := rows.Scan(
			&player.ID,
			&player.Name,
			&player.IGN,
			&player.DiscordID,
			&player.RiotID,
			&player.EligibilityDocURL,
			&player.Status,
			&player.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		players = append(players, player)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return players, nil
}

func (r *postgresPlayerRepository) UpdateStatus(ctx context.Context, id int, status models.ApprovalStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE players SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) SetEligibilityDoc(ctx context.Context, id int, docURL string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE players SET eligibility_doc_url = $1 WHERE id = $2`, docURL, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}
