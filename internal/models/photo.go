package models

import (
	"fmt"
	"time"
)

// Photo is a single contest entry together with its running aggregate.
// TotalScore and VoteCount are only ever changed inside the vote transaction.
type Photo struct {
	ID         string    `gorm:"primaryKey;size:128" json:"id"`
	URL        string    `gorm:"size:512;not null" json:"url"`
	TotalScore int       `gorm:"not null;default:0" json:"total_score"`
	VoteCount  int       `gorm:"not null;default:0" json:"vote_count"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName pins the collection name.
func (Photo) TableName() string {
	return "photos"
}

// Average returns the mean score, or zero when nobody has voted yet.
func (p Photo) Average() float64 {
	if p.VoteCount <= 0 {
		return 0
	}
	return float64(p.TotalScore) / float64(p.VoteCount)
}

// FormattedAverage renders Average with two decimals.
func (p Photo) FormattedAverage() string {
	return FormatAverage(p.TotalScore, p.VoteCount)
}

// FormatAverage renders total/count with two decimals, "0.00" when count is zero.
func FormatAverage(total, count int) string {
	if count <= 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", float64(total)/float64(count))
}
