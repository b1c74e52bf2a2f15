package dto

import "time"

// RankingEntry is one row of the admin leaderboard.
type RankingEntry struct {
	Rank        int    `json:"rank"`
	PhotoID     string `json:"photoId"`
	URL         string `json:"url"`
	Participant string `json:"participant"`
	TotalScore  int    `json:"totalScore"`
	VoteCount   int    `json:"voteCount"`
	Average     string `json:"average"`
}

// RankingResponse is the full leaderboard.
type RankingResponse struct {
	Entries     []RankingEntry `json:"entries"`
	TotalVotes  int            `json:"totalVotes"`
	GeneratedAt time.Time      `json:"generatedAt"`
	CacheHit    bool           `json:"cacheHit"`
}

// ReportVote is a single vote inside a photo breakdown.
type ReportVote struct {
	JuryEmail string    `json:"juryEmail"`
	JuryName  string    `json:"juryName"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment"`
	VotedAt   time.Time `json:"votedAt"`
}

// PhotoReport breaks one photo down by juror.
type PhotoReport struct {
	RankingEntry
	Votes []ReportVote `json:"votes"`
}

// JuryParticipation counts how many photos a juror has scored.
type JuryParticipation struct {
	JuryEmail string `json:"juryEmail"`
	JuryName  string `json:"juryName"`
	VoteCount int    `json:"voteCount"`
}

// ReportResponse is the admin vote report.
type ReportResponse struct {
	Photos      []PhotoReport       `json:"photos"`
	Jury        []JuryParticipation `json:"jury"`
	TotalVotes  int                 `json:"totalVotes"`
	GeneratedAt time.Time           `json:"generatedAt"`
}
