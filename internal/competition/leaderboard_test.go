package competition

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

func entry(name string, matches, wins, points int, winRate float64, avgEdge string, avgPlacement float64) domain.LeaderboardEntry {
	return domain.LeaderboardEntry{
		Strategy:     name,
		Matches:      matches,
		Wins:         wins,
		Points:       points,
		WinRate:      winRate,
		AvgEdge:      decimal.RequireFromString(avgEdge),
		AvgPlacement: avgPlacement,
	}
}

func names(entries []domain.LeaderboardEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Strategy
	}
	return out
}

func TestSortLeaderboardByWinRate(t *testing.T) {
	entries := []domain.LeaderboardEntry{
		entry("steady", 10, 6, 10, 0.6, "12.5", 1.8),
		entry("veteran", 40, 24, 30, 0.6, "8.0", 2.1),
		entry("ace", 5, 4, 12, 0.8, "20.0", 1.2),
	}
	SortLeaderboard(entries, domain.SortByWinRate)
	// Equal win rates break toward more matches played.
	require.Equal(t, []string{"ace", "veteran", "steady"}, names(entries))
}

func TestSortLeaderboardByMatches(t *testing.T) {
	entries := []domain.LeaderboardEntry{
		entry("a", 3, 1, 3, 0.33, "1", 2),
		entry("b", 12, 2, 6, 0.17, "2", 3),
		entry("c", 7, 5, 15, 0.71, "9", 1.4),
	}
	SortLeaderboard(entries, domain.SortByMatches)
	require.Equal(t, []string{"b", "c", "a"}, names(entries))
}

func TestSortLeaderboardByAvgEdge(t *testing.T) {
	entries := []domain.LeaderboardEntry{
		entry("a", 3, 1, 3, 0.33, "-4.25", 2),
		entry("b", 3, 2, 6, 0.67, "15.75", 1.5),
		entry("c", 3, 2, 6, 0.67, "3.5", 1.5),
	}
	SortLeaderboard(entries, domain.SortByAvgEdge)
	require.Equal(t, []string{"b", "c", "a"}, names(entries))
}

func TestSortLeaderboardByPoints(t *testing.T) {
	entries := []domain.LeaderboardEntry{
		entry("fewfirsts", 10, 2, 18, 0.2, "1", 2.4),
		entry("manyfirsts", 10, 5, 18, 0.5, "1", 2.0),
		entry("low", 10, 1, 4, 0.1, "1", 3.5),
	}
	SortLeaderboard(entries, domain.SortByPoints)
	// Equal points break toward more first places.
	require.Equal(t, []string{"manyfirsts", "fewfirsts", "low"}, names(entries))
}

func TestSortLeaderboardByPlacement(t *testing.T) {
	entries := []domain.LeaderboardEntry{
		entry("unplaced", 4, 0, 0, 0, "0", 0),
		entry("podium", 6, 3, 11, 0.5, "5", 1.6),
		entry("podiumtoo", 9, 4, 14, 0.44, "4", 1.6),
		entry("mid", 5, 1, 5, 0.2, "2", 2.8),
	}
	SortLeaderboard(entries, domain.SortByPlacement)
	// Ascending placement; ties to more matches; never-placed last.
	require.Equal(t, []string{"podiumtoo", "podium", "mid", "unplaced"}, names(entries))
}

func TestSortLeaderboardUnknownFallsBackToWinRate(t *testing.T) {
	entries := []domain.LeaderboardEntry{
		entry("low", 4, 1, 3, 0.25, "1", 2),
		entry("high", 4, 3, 9, 0.75, "3", 1.3),
	}
	SortLeaderboard(entries, domain.LeaderboardSort("bogus"))
	require.Equal(t, []string{"high", "low"}, names(entries))
}
