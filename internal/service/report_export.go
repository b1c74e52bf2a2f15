package service

import (
	"io"
	"sort"

	"github.com/noah-isme/photo-contest-api/internal/dto"
	"github.com/noah-isme/photo-contest-api/internal/workbook"
)

const exportTimeLayout = "2006-01-02 15:04:05"

// Sheet names in the results workbook.
const (
	VotesSheet   = "Votes"
	SummarySheet = "Summary"
)

// WriteResultsWorkbook writes the report as an xlsx workbook with every vote
// on the first sheet and the leaderboard on the second.
func WriteResultsWorkbook(w io.Writer, report dto.ReportResponse) error {
	return workbook.Write(w, votesSheet(report), summarySheet(report))
}

// votesSheet has one row per vote, ordered by photo id.
func votesSheet(report dto.ReportResponse) workbook.Sheet {
	photos := append([]dto.PhotoReport(nil), report.Photos...)
	sort.SliceStable(photos, func(i, j int) bool { return photos[i].PhotoID < photos[j].PhotoID })

	sheet := workbook.Sheet{
		Name:   VotesSheet,
		Header: []string{"photoId", "owner", "score", "juryEmail", "comment", "timestamp"},
	}
	for _, photo := range photos {
		for _, vote := range photo.Votes {
			sheet.Rows = append(sheet.Rows, []interface{}{
				photo.PhotoID,
				photo.Participant,
				vote.Score,
				vote.JuryEmail,
				vote.Comment,
				vote.VotedAt.UTC().Format(exportTimeLayout),
			})
		}
	}
	return sheet
}

// summarySheet lists the leaderboard in rank order, including photos nobody
// has voted on.
func summarySheet(report dto.ReportResponse) workbook.Sheet {
	sheet := workbook.Sheet{
		Name:   SummarySheet,
		Header: []string{"rank", "photoId", "owner", "totalScore", "voteCount", "average"},
	}
	for _, photo := range report.Photos {
		sheet.Rows = append(sheet.Rows, []interface{}{
			photo.Rank,
			photo.PhotoID,
			photo.Participant,
			photo.TotalScore,
			photo.VoteCount,
			photo.Average,
		})
	}
	return sheet
}
