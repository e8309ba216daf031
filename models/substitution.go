package models

import "time"

type Substitution struct {
	ID        int            `json:"id"`
	TeamID    int            `json:"team_id"`
	OldPlayer string         `json:"old_player"`
	NewPlayer string         `json:"new_player"`
	Status    ApprovalStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}
