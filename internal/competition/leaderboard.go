package competition

import (
	"sort"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

// SortLeaderboard orders standings entries in place for the requested view.
// Unknown sorts fall back to win rate. Every ordering is stable, so entries
// tied on all keys keep their input order.
func SortLeaderboard(entries []domain.LeaderboardEntry, by domain.LeaderboardSort) {
	var less func(a, b domain.LeaderboardEntry) bool

	switch by {
	case domain.SortByMatches:
		less = func(a, b domain.LeaderboardEntry) bool {
			return a.Matches > b.Matches
		}
	case domain.SortByAvgEdge:
		less = func(a, b domain.LeaderboardEntry) bool {
			return a.AvgEdge.GreaterThan(b.AvgEdge)
		}
	case domain.SortByPoints:
		less = func(a, b domain.LeaderboardEntry) bool {
			if a.Points != b.Points {
				return a.Points > b.Points
			}
			return a.Wins > b.Wins
		}
	case domain.SortByPlacement:
		// Ascending: a lower average placement is better. Entries that
		// never placed sort last; ties go to whoever played more.
		less = func(a, b domain.LeaderboardEntry) bool {
			pa, pb := placementKey(a), placementKey(b)
			if pa != pb {
				return pa < pb
			}
			return a.Matches > b.Matches
		}
	default:
		less = func(a, b domain.LeaderboardEntry) bool {
			if a.WinRate != b.WinRate {
				return a.WinRate > b.WinRate
			}
			return a.Matches > b.Matches
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return less(entries[i], entries[j])
	})
}

func placementKey(e domain.LeaderboardEntry) float64 {
	if e.AvgPlacement <= 0 {
		return 999
	}
	return e.AvgPlacement
}
