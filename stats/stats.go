// Package stats reduces sequences of red packets into the aggregate views
// served by the API. All functions are pure: same input, same output, no I/O.
package stats

import (
	"math"
	"sort"
	"strconv"

	"github.com/cppla/hongbao/models"
)

const (
	// TopN caps ranking output.
	TopN = 10
	// DefaultLabel names groups without an owner name or source.
	DefaultLabel = "default"
)

// Rank is one row of a ranking.
type Rank struct {
	ID    uint   `json:"id,omitempty"`
	Label string `json:"label"`
	Total int64  `json:"total"`
	Count int    `json:"count"`
}

// Bucket is one row of the amount distribution.
type Bucket struct {
	Amount     int64 `json:"amount"`
	Count      int   `json:"count"`
	Total      int64 `json:"total"`
	Percentage int   `json:"percentage"`
}

// Sum adds up all amounts.
func Sum(records []models.RedPacket) int64 {
	var total int64
	for _, r := range records {
		total += r.Amount
	}
	return total
}

// Years lists the distinct years present, newest first.
func Years(records []models.RedPacket) []int {
	seen := make(map[int]struct{})
	years := make([]int, 0)
	for _, r := range records {
		if _, ok := seen[r.Year]; ok {
			continue
		}
		seen[r.Year] = struct{}{}
		years = append(years, r.Year)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// RankByOwner groups by owning user. Visibility filtering is the caller's job.
func RankByOwner(records []models.RedPacket) []Rank {
	return rank(records, func(r models.RedPacket) (string, uint, string) {
		label := r.OwnerLabel()
		if label == "" {
			label = DefaultLabel
		}
		return strconv.FormatUint(uint64(r.UserID), 10), r.UserID, label
	})
}

// RankBySource groups by the free-text source field.
func RankBySource(records []models.RedPacket) []Rank {
	return rank(records, func(r models.RedPacket) (string, uint, string) {
		if r.Source == "" {
			return DefaultLabel, 0, DefaultLabel
		}
		return r.Source, 0, r.Source
	})
}

func rank(records []models.RedPacket, key func(models.RedPacket) (string, uint, string)) []Rank {
	index := make(map[string]int)
	groups := make([]Rank, 0)
	for _, r := range records {
		k, id, label := key(r)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Rank{ID: id, Label: label})
		}
		groups[i].Total += r.Amount
		groups[i].Count++
	}
	// stable: equal totals keep discovery order
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].Total > groups[b].Total })
	if len(groups) > TopN {
		groups = groups[:TopN]
	}
	return groups
}

// Distribution groups by exact amount, largest amount first.
func Distribution(records []models.RedPacket) []Bucket {
	index := make(map[int64]int)
	buckets := make([]Bucket, 0)
	for _, r := range records {
		i, ok := index[r.Amount]
		if !ok {
			i = len(buckets)
			index[r.Amount] = i
			buckets = append(buckets, Bucket{Amount: r.Amount})
		}
		buckets[i].Count++
		buckets[i].Total += r.Amount
	}
	n := float64(len(records))
	for i := range buckets {
		buckets[i].Percentage = int(math.Round(float64(buckets[i].Count) / n * 100))
	}
	sort.Slice(buckets, func(a, b int) bool { return buckets[a].Amount > buckets[b].Amount })
	return buckets
}
