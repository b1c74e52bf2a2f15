package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatAverage(t *testing.T) {
	cases := []struct {
		total, count int
		want         string
	}{
		{0, 0, "0.00"},
		{12, 0, "0.00"},
		{10, 3, "3.33"},
		{9, 2, "4.50"},
		{5, 1, "5.00"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, FormatAverage(tc.total, tc.count))
	}
}

func TestPhotoAverage(t *testing.T) {
	require.Zero(t, Photo{}.Average())
	require.InDelta(t, 3.5, Photo{TotalScore: 7, VoteCount: 2}.Average(), 1e-9)
	require.Equal(t, "3.50", Photo{TotalScore: 7, VoteCount: 2}.FormattedAverage())
}
