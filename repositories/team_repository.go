package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/siamcircuit/tournament-ops/models"
)

var (
	ErrTeamNotFound            = errors.New("team not found")
	ErrTeamNameConflict        = errors.New("team name is already in use")
	ErrParticipantAlreadyBound = errors.New("team already has a bracket participant id")
)

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	GetByName(ctx context.Context, name string) (*models.Team, error)
	List(ctx context.Context, limit int) ([]*models.Team, error)
	ListByParticipantIDs(ctx context.Context, participantIDs []string) ([]*models.Team, error)
	// SetParticipantID записывает внешний participant id ровно один раз.
	SetParticipantID(ctx context.Context, id int, participantID string) error
	UpdateLogo(ctx context.Context, id int, logoURL string) error
	UpdateRoster(ctx context.Context, id int, roster []string) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) Create(ctx context.Context, team *models.Team) error {
	rosterJSON, err := json.Marshal(team.Roster)
	if err != nil {
		return fmt.Errorf("failed to marshal roster: %w", err)
	}

	query := `
		INSERT INTO teams (name, logo_url, captain_discord_id, roster)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err = r.db.QueryRowContext(ctx, query,
		team.Name,
		team.LogoURL,
		team.CaptainDiscordID,
		rosterJSON,
	).Scan(&team.ID, &team.CreatedAt)

	return r.handleTeamError(err)
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	query := `
		SELECT id, name, logo_url, captain_discord_id, roster, challonge_participant_id, created_at
		FROM teams
		WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresTeamRepository) GetByName(ctx context.Context, name string) (*models.Team, error) {
	query := `
		SELECT id, name, logo_url, captain_discord_id, roster, challonge_participant_id, created_at
		FROM teams
		WHERE name = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, name))
}

func (r *postgresTeamRepository) List(ctx context.Context, limit int) ([]*models.Team, error) {
	query := `
		SELECT id, name, logo_url, captain_discord_id, roster, challonge_participant_id, created_at
		FROM teams
		ORDER BY id DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *postgresTeamRepository) ListByParticipantIDs(ctx context.Context, participantIDs []string) ([]*models.Team, error) {
	if len(participantIDs) == 0 {
		return []*models.Team{}, nil
	}
	query := `
		SELECT id, name, logo_url, captain_discord_id, roster, challonge_participant_id, created_at
		FROM teams
		WHERE challonge_participant_id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(participantIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *postgresTeamRepository) SetParticipantID(ctx context.Context, id int, participantID string) error {
	// Запись однократная: повторная синхронизация команды с сеткой
	// не должна подменять уже выданный participant id.
	query := `
		UPDATE teams
		SET challonge_participant_id = $1
		WHERE id = $2 AND challonge_participant_id IS NULL`

	result, err := r.db.ExecContext(ctx, query, participantID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrParticipantAlreadyBound)
}

func (r *postgresTeamRepository) UpdateLogo(ctx context.Context, id int, logoURL string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE teams SET logo_url = $1 WHERE id = $2`, logoURL, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdateRoster(ctx context.Context, id int, roster []string) error {
	rosterJSON, err := json.Marshal(roster)
	if err != nil {
		return fmt.Errorf("failed to marshal roster: %w", err)
	}
	result, err := r.db.ExecContext(ctx, `UPDATE teams SET roster = $1 WHERE id = $2`, rosterJSON, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) scanOne(row *sql.Row) (*models.Team, error) {
	team := &models.Team{}
	var rosterJSON []byte
	err := row.Scan(
		&team.ID,
		&team.Name,
		&team.LogoURL,
		&team.CaptainDiscordID,
		&rosterJSON,
		&team.ChallongeParticipantID,
		&team.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(rosterJSON, &team.Roster); err != nil {
		return nil, fmt.Errorf("failed to unmarshal roster for team %d: %w", team.ID, err)
	}
	return team, nil
}

func (r *postgresTeamRepository) scanMany(rows *sql.Rows) ([]*models.Team, error) {
	teams := make([]*models.Team, 0)
	for rows.Next() {
		team := &models.Team{}
		var rosterJSON []byte
		if err := rows.Scan(
			&team.ID,
			&team.Name,
			&team.LogoURL,
			&team.CaptainDiscordID,
			&rosterJSON,
			&team.ChallongeParticipantID,
			&team.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rosterJSON, &team.Roster); err != nil {
			return nil, fmt.Errorf("failed to unmarshal roster for team %d: %w", team.ID, err)
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *postgresTeamRepository) handleTeamError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23505" { // unique_violation
			return ErrTeamNameConflict
		}
	}
	return err
}
