package emotion

import (
	"math"
	"sort"
)

// Stats holds per-emotion message counts and percentages for one user or one
// group of users.
type Stats struct {
	Counts      map[Emotion]int `json:"counts"`
	Percentages map[Emotion]int `json:"percentages"`
	Total       int             `json:"total"`
}

// Aggregate folds a sequence of emotion labels into per-emotion counts and
// percentages. Labels outside the canonical vocabulary are ignored entirely
// and do not count toward Total. Percentages are rounded independently per
// emotion and are not guaranteed to sum to 100.
func Aggregate(labels []Emotion) Stats {
	counts := make(map[Emotion]int, len(All))
	for _, e := range All {
		counts[e] = 0
	}

	total := 0
	for _, label := range labels {
		if _, ok := counts[label]; !ok {
			continue
		}
		counts[label]++
		total++
	}

	percentages := make(map[Emotion]int, len(All))
	for _, e := range All {
		if total > 0 {
			percentages[e] = int(math.Round(float64(counts[e]) / float64(total) * 100))
		} else {
			percentages[e] = 0
		}
	}

	return Stats{
		Counts:      counts,
		Percentages: percentages,
		Total:       total,
	}
}

// A Labeled row attributes one emotion label to a user, for grouped
// aggregation across all users.
type Labeled struct {
	UserID   string
	UserName string
	Emotion  Emotion
}

// UserStats is the aggregate for a single user within a grouped view.
type UserStats struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Stats
}

// AggregateByUser groups rows by user and aggregates each group, returning
// the users sorted by message count descending. The first name seen for a
// user wins.
func AggregateByUser(rows []Labeled) []UserStats {
	grouped := make(map[string][]Emotion)
	names := make(map[string]string)
	var order []string

	for _, row := range rows {
		if _, ok := grouped[row.UserID]; !ok {
			order = append(order, row.UserID)
			names[row.UserID] = row.UserName
		}
		grouped[row.UserID] = append(grouped[row.UserID], row.Emotion)
	}

	out := make([]UserStats, 0, len(order))
	for _, id := range order {
		out = append(out, UserStats{
			UserID:   id,
			UserName: names[id],
			Stats:    Aggregate(grouped[id]),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total > out[j].Total
	})
	return out
}
