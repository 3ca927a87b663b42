package github

import (
	"sort"

	"github.com/xxxsen/mrag/internal/model"
)

// SortDays orders days by ascending ISO date in place.
func SortDays(days []model.ContributionDay) {
	sort.SliceStable(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	})
}

// LongestStreak is the longest run of consecutive days with a positive count.
// days must be sorted ascending.
func LongestStreak(days []model.ContributionDay) int {
	longest, run := 0, 0
	for _, d := range days {
		if d.Count > 0 {
			run++
			continue
		}
		if run > longest {
			longest = run
		}
		run = 0
	}
	if run > longest {
		longest = run
	}
	return longest
}

// CurrentStreak counts positive days backwards from the latest day. A
// zero-count day is skipped only when it is today, since today may still
// receive contributions.
func CurrentStreak(days []model.ContributionDay, today string) int {
	streak := 0
	for i := len(days) - 1; i >= 0; i-- {
		d := days[i]
		if d.Count > 0 {
			streak++
			continue
		}
		if d.Date == today {
			continue
		}
		break
	}
	return streak
}

func ActiveDays(days []model.ContributionDay) int {
	n := 0
	for _, d := range days {
		if d.Count > 0 {
			n++
		}
	}
	return n
}
