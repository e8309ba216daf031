package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/siamcircuit/tournament-ops/models"
)

var (
	ErrMatchStateNotFound = errors.New("match state not found")
	ErrMatchCompleted     = errors.New("match is already completed")
)

// MatchStateRepository хранит локальную часть состояния матча.
// Все записи — одно-строчные upsert'ы: строка создаётся лениво при первом
// действии (привязка расписания, результат, пруф) и никогда не удаляется.
// Upsert пишет только свои колонки и не затирает чужие.
type MatchStateRepository interface {
	UpsertResult(ctx context.Context, bracketMatchID string, side models.Side, proofURL string) error
	UpsertProof(ctx context.Context, bracketMatchID string, side models.Side, proofURL string) error
	UpsertSchedule(ctx context.Context, bracketMatchID string, scheduledAt time.Time) error
	// BindResultChannel возвращает фактически сохранённый id канала:
	// если канал уже был привязан, привязка не меняется.
	BindResultChannel(ctx context.Context, bracketMatchID, channelID string) (string, error)
	MarkAnnounced(ctx context.Context, bracketMatchID string, at time.Time) error
	SetStatus(ctx context.Context, bracketMatchID string, status models.MatchStatus) error
	GetByBracketMatchID(ctx context.Context, bracketMatchID string) (*models.MatchState, error)
	GetByResultChannelID(ctx context.Context, channelID string) (*models.MatchState, error)
	ListByBracketMatchIDs(ctx context.Context, ids []string) (map[string]*models.MatchState, error)
	ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*models.MatchState, error)
}

type postgresMatchStateRepository struct {
	db *sql.DB
}

func NewPostgresMatchStateRepository(db *sql.DB) MatchStateRepository {
	return &postgresMatchStateRepository{db: db}
}

const matchStateColumns = `
	bracket_match_id, scheduled_at, status, result, proof_url_a, proof_url_b,
	result_channel_id, announced_at, created_at, updated_at`

func scanMatchState(row interface{ Scan(...interface{}) error }) (*models.MatchState, error) {
	state := &models.MatchState{}
	var result *string
	err := row.Scan(
		&state.BracketMatchID,
		&state.ScheduledAt,
		&state.Status,
		&result,
		&state.ProofURLA,
		&state.ProofURLB,
		&state.ResultChannelID,
		&state.AnnouncedAt,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if result != nil {
		side := models.Side(*result)
		state.Result = &side
	}
	return state, nil
}

func (r *postgresMatchStateRepository) UpsertResult(ctx context.Context, bracketMatchID string, side models.Side, proofURL string) error {
	proofColumn := "proof_url_a"
	if side == models.SideB {
		proofColumn = "proof_url_b"
	}
	// Результат можно перезаписывать сколько угодно, но только пока матч
	// не завершён. Пруф второй стороны не трогаем.
	query := `
		INSERT INTO match_states (bracket_match_id, status, result, ` + proofColumn + `)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (bracket_match_id) DO UPDATE
		SET status = $2, result = $3, ` + proofColumn + ` = $4, updated_at = now()
		WHERE match_states.status <> $5`

	result, err := r.db.ExecContext(ctx, query,
		bracketMatchID, models.MatchStatusAwaitingProof, string(side), proofURL, models.MatchStatusCompleted)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchCompleted)
}

func (r *postgresMatchStateRepository) UpsertProof(ctx context.Context, bracketMatchID string, side models.Side, proofURL string) error {
	proofColumn := "proof_url_a"
	if side == models.SideB {
		proofColumn = "proof_url_b"
	}
	query := `
		INSERT INTO match_states (bracket_match_id, status, ` + proofColumn + `)
		VALUES ($1, $2, $3)
		ON CONFLICT (bracket_match_id) DO UPDATE
		SET ` + proofColumn + ` = $3,
		    status = CASE WHEN match_states.status = $4 THEN match_states.status ELSE $2 END,
		    updated_at = now()`

	_, err := r.db.ExecContext(ctx, query,
		bracketMatchID, models.MatchStatusAwaitingProof, proofURL, models.MatchStatusCompleted)
	return err
}

func (r *postgresMatchStateRepository) UpsertSchedule(ctx context.Context, bracketMatchID string, scheduledAt time.Time) error {
	// Last-write-wins: перенос матча штатная ситуация, конфликтов не ищем.
	query := `
		INSERT INTO match_states (bracket_match_id, scheduled_at, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (bracket_match_id) DO UPDATE
		SET scheduled_at = $2, updated_at = now()`

	_, err := r.db.ExecContext(ctx, query, bracketMatchID, scheduledAt, models.MatchStatusScheduled)
	return err
}

func (r *postgresMatchStateRepository) BindResultChannel(ctx context.Context, bracketMatchID, channelID string) (string, error) {
	// result_channel_id записывается ровно один раз; COALESCE оставляет
	// уже привязанный канал нетронутым. Вызвавший сравнивает возвращённый
	// id с запрошенным.
	query := `
		INSERT INTO match_states (bracket_match_id, status, result_channel_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (bracket_match_id) DO UPDATE
		SET result_channel_id = COALESCE(match_states.result_channel_id, EXCLUDED.result_channel_id),
		    updated_at = now()
		RETURNING result_channel_id`

	var stored string
	err := r.db.QueryRowContext(ctx, query, bracketMatchID, models.MatchStatusScheduled, channelID).Scan(&stored)
	if err != nil {
		return "", err
	}
	return stored, nil
}

func (r *postgresMatchStateRepository) MarkAnnounced(ctx context.Context, bracketMatchID string, at time.Time) error {
	query := `
		INSERT INTO match_states (bracket_match_id, status, announced_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (bracket_match_id) DO UPDATE
		SET announced_at = COALESCE(match_states.announced_at, EXCLUDED.announced_at),
		    updated_at = now()`

	_, err := r.db.ExecContext(ctx, query, bracketMatchID, models.MatchStatusScheduled, at)
	return err
}

func (r *postgresMatchStateRepository) SetStatus(ctx context.Context, bracketMatchID string, status models.MatchStatus) error {
	query := `
		INSERT INTO match_states (bracket_match_id, status)
		VALUES ($1, $2)
		ON CONFLICT (bracket_match_id) DO UPDATE
		SET status = $2, updated_at = now()`

	_, err := r.db.ExecContext(ctx, query, bracketMatchID, status)
	return err
}

func (r *postgresMatchStateRepository) GetByBracketMatchID(ctx context.Context, bracketMatchID string) (*models.MatchState, error) {
	query := `SELECT ` + matchStateColumns + ` FROM match_states WHERE bracket_match_id = $1`

	state, err := scanMatchState(r.db.QueryRowContext(ctx, query, bracketMatchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchStateNotFound
		}
		return nil, err
	}
	return state, nil
}

func (r *postgresMatchStateRepository) GetByResultChannelID(ctx context.Context, channelID string) (*models.MatchState, error) {
	query := `SELECT ` + matchStateColumns + ` FROM match_states WHERE result_channel_id = $1`

	state, err := scanMatchState(r.db.QueryRowContext(ctx, query, channelID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchStateNotFound
		}
		return nil, err
	}
	return state, nil
}

func (r *postgresMatchStateRepository) ListByBracketMatchIDs(ctx context.Context, ids []string) (map[string]*models.MatchState, error) {
	states := make(map[string]*models.MatchState, len(ids))
	if len(ids) == 0 {
		return states, nil
	}

	query := `SELECT ` + matchStateColumns + ` FROM match_states WHERE bracket_match_id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		state, scanErr := scanMatchState(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		states[state.BracketMatchID] = state
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return states, nil
}

func (r *postgresMatchStateRepository) ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*models.MatchState, error) {
	query := `
		SELECT ` + matchStateColumns + `
		FROM match_states
		WHERE status = $1 AND scheduled_at IS NOT NULL AND scheduled_at >= $2
		ORDER BY scheduled_at ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, models.MatchStatusScheduled, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := make([]*models.MatchState, 0)
	for rows.Next() {
		state, scanErr := scanMatchState(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		states = append(states, state)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return states, nil
}
