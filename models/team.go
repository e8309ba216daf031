package models

import "time"

type Team struct {
	ID                     int       `json:"id"`
	Name                   string    `json:"name"`
	LogoURL                *string   `json:"logo_url,omitempty"`
	CaptainDiscordID       string    `json:"captain_discord_id"`
	Roster                 []string  `json:"roster"`
	ChallongeParticipantID *string   `json:"challonge_participant_id,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}
