package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions written by the vote transaction.
const (
	VoteActionCreate = "VOTE"
	VoteActionUpdate = "UPDATE_VOTE"
)

// VoteLog is an append-only audit record of a vote or revote.
type VoteLog struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	Action    string            `gorm:"size:32;not null;index" json:"action"`
	JuryEmail string            `gorm:"size:255;not null" json:"jury_email"`
	PhotoID   string            `gorm:"size:128;not null;index" json:"photo_id"`
	Score     int               `gorm:"not null" json:"score"`
	Comment   string            `gorm:"type:text" json:"comment"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// TableName pins the collection name.
func (VoteLog) TableName() string {
	return "logs"
}
