package dto

import (
	"time"

	"github.com/noah-isme/photo-contest-api/internal/models"
)

// VoteRequest is a juror's score for one photo.
type VoteRequest struct {
	Score   int    `json:"score" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// VoteResponse describes a stored vote and, after a cast, the photo aggregate.
type VoteResponse struct {
	PhotoID    string    `json:"photoId"`
	Score      int       `json:"score"`
	Comment    string    `json:"comment"`
	VotedAt    time.Time `json:"votedAt"`
	Action     string    `json:"action,omitempty"`
	TotalScore *int      `json:"totalScore,omitempty"`
	VoteCount  *int      `json:"voteCount,omitempty"`
}

// NewVoteResponse maps a vote model.
func NewVoteResponse(vote models.Vote) VoteResponse {
	return VoteResponse{
		PhotoID: vote.PhotoID,
		Score:   vote.Score,
		Comment: vote.Comment,
		VotedAt: vote.VotedAt,
	}
}

// GalleryPhoto is what a juror sees: the photo and their own vote, never the totals.
type GalleryPhoto struct {
	ID      string        `json:"id"`
	URL     string        `json:"url"`
	MyVote  *VoteResponse `json:"myVote,omitempty"`
	IsRated bool          `json:"isRated"`
}
