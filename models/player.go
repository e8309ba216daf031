package models

import "time"

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type Player struct {
	ID                int            `json:"id"`
	Name              string         `json:"name"`
	IGN               string         `json:"ign"`
	DiscordID         string         `json:"discord_id"`
	RiotID            string         `json:"riot_id"`
	EligibilityDocURL *string        `json:"eligibility_doc,omitempty"`
	Status            ApprovalStatus `json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
}
