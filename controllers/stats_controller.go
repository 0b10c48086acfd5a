package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/hongbao/stats"
	"github.com/cppla/hongbao/store"
	"github.com/cppla/hongbao/utils"
)

const leaderboardCachePrefix = "cache:leaderboard:"

// StatsController serves the public views.
type StatsController struct {
	source store.LeaderboardSource
	cache  *utils.Cache
	ttl    time.Duration
	now    func() time.Time
}

// NewStatsController creates a StatsController. source may be nil when the
// profile has no leaderboard; cache may be nil.
func NewStatsController(source store.LeaderboardSource, cache *utils.Cache, ttl time.Duration, now func() time.Time) *StatsController {
	if now == nil {
		now = time.Now
	}
	return &StatsController{source: source, cache: cache, ttl: ttl, now: now}
}

type leaderboardEntry struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	TotalAmount int64  `json:"total_amount"`
	PacketCount int    `json:"packet_count"`
}

// Leaderboard ranks public users by this year's total.
func (s *StatsController) Leaderboard(ctx *gin.Context) {
	year := s.now().Year()
	key := leaderboardCachePrefix + strconv.Itoa(year)
	if b, ok := s.cache.GetBytes(ctx.Request.Context(), key); ok {
		ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
		return
	}

	records, err := s.source.PublicRecords(ctx.Request.Context(), year)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	ranks := stats.RankByOwner(records)
	entries := make([]leaderboardEntry, 0, len(ranks))
	for _, r := range ranks {
		entries = append(entries, leaderboardEntry{ID: r.ID, Username: r.Label, TotalAmount: r.Total, PacketCount: r.Count})
	}
	s.cache.SetJSON(ctx.Request.Context(), key, entries, s.ttl)
	utils.Success(ctx, entries)
}

// Health reports liveness.
func (s *StatsController) Health(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"message":   "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}
