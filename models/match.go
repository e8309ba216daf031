package models

import "time"

type MatchStatus string

const (
	MatchStatusScheduled     MatchStatus = "scheduled"
	MatchStatusAwaitingProof MatchStatus = "awaiting_proof"
	MatchStatusCompleted     MatchStatus = "completed"
)

type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// MatchState — локальное состояние матча, привязанное к матчу внешней
// сетки по её идентификатору. Внешний сервис ничего не знает об этих
// полях (результат, пруфы, канал), мы ничего не решаем о парах:
// две записи, соединяемые по id.
type MatchState struct {
	BracketMatchID  string      `json:"bracket_match_id"`
	ScheduledAt     *time.Time  `json:"scheduled_at,omitempty"`
	Status          MatchStatus `json:"status"`
	Result          *Side       `json:"result,omitempty"`
	ProofURLA       *string     `json:"proof_url_a,omitempty"`
	ProofURLB       *string     `json:"proof_url_b,omitempty"`
	ResultChannelID *string     `json:"result_channel_id,omitempty"`
	AnnouncedAt     *time.Time  `json:"announced_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// BracketMatch — матч в том виде, как его отдаёт внешняя сетка.
// Локально не хранится.
type BracketMatch struct {
	ID           string     `json:"id"`
	ParticipantA *string    `json:"participant_a,omitempty"`
	ParticipantB *string    `json:"participant_b,omitempty"`
	PrereqMatchA *string    `json:"prereq_match_a,omitempty"`
	PrereqMatchB *string    `json:"prereq_match_b,omitempty"`
	Round        string     `json:"round"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
	WinnerID     *string    `json:"winner_id,omitempty"`
}

func (m BracketMatch) Decided() bool {
	return m.WinnerID != nil && *m.WinnerID != ""
}
