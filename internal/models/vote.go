package models

import "time"

// Score bounds accepted from jurors.
const (
	MinScore = 1
	MaxScore = 5
)

// Vote is one juror's evaluation of one photo. (PhotoID, JuryEmail) is unique.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PhotoID   string    `gorm:"size:128;not null;uniqueIndex:idx_votes_photo_jury,priority:1" json:"photo_id"`
	JuryEmail string    `gorm:"size:255;not null;uniqueIndex:idx_votes_photo_jury,priority:2;index" json:"jury_email"`
	Score     int       `gorm:"not null" json:"score"`
	Comment   string    `gorm:"type:text" json:"comment"`
	VotedAt   time.Time `gorm:"not null" json:"voted_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the collection name.
func (Vote) TableName() string {
	return "votes"
}
