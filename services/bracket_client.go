package services

import (
	"context"

	"github.com/siamcircuit/tournament-ops/models"
)

// BracketClient — контракт внешней турнирной сетки. Сетка — источник
// истины по парам и победителям; реализация обязана возвращать ошибку
// на любой не-успешный ответ, не маскируя её под успех.
type BracketClient interface {
	ListMatches(ctx context.Context) ([]models.BracketMatch, error)
	GetMatch(ctx context.Context, matchID string) (*models.BracketMatch, error)
	CreateParticipant(ctx context.Context, name string) (string, error)
	SubmitWinner(ctx context.Context, matchID, winnerParticipantID string) error
}

// EventBroadcaster пушит события (match_created, match_confirmed,
// bracket_updated) подключённым клиентам сетки.
type EventBroadcaster interface {
	BroadcastEvent(eventType string, payload interface{})
}

// ResultPropagator запускается после успешного подтверждения результата
// и анонсирует победителя и следующий матч (Pass C планировщика).
type ResultPropagator interface {
	PropagateResult(ctx context.Context, matchID string)
}
