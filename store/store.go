// Package store persists red packets and users. RecordStore has a relational
// backend (gorm) and a key-indexed backend (Redis); both share validation and
// ordering rules so the HTTP layer does not care which one is wired.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/cppla/hongbao/apperr"
	"github.com/cppla/hongbao/models"
	"github.com/cppla/hongbao/utils"
)

// Rune caps for the free-text record fields. The HTTP binding rejects longer
// values; direct callers get them truncated.
const (
	MaxSourceLen = 64
	MaxNoteLen   = 255
)

// RecordStore owns red packet CRUD. Every call is scoped to ownerID.
type RecordStore interface {
	Add(ctx context.Context, ownerID uint, amount int64, source, note string) (models.RedPacket, error)
	// List returns newest first. A nil year means every year.
	List(ctx context.Context, ownerID uint, year *int) ([]models.RedPacket, error)
	// Remove fails with apperr.ErrRecordNotFound when the record is missing or not owned.
	Remove(ctx context.Context, id, ownerID uint) error
	RemoveAll(ctx context.Context, ownerID uint) (int64, error)
	RemoveYear(ctx context.Context, ownerID uint, year int) (int64, error)
	Total(ctx context.Context, ownerID uint, year *int) (int64, error)
	Years(ctx context.Context, ownerID uint) ([]int, error)
}

// LeaderboardSource lists records of users who opted into public visibility.
type LeaderboardSource interface {
	PublicRecords(ctx context.Context, year int) ([]models.RedPacket, error)
}

// Option configures a store.
type Option func(*options)

type options struct {
	now    func() time.Time
	prefix string
}

// WithClock overrides the clock used for Year and CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithKeyPrefix sets the Redis key namespace (default "hb:").
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, prefix: "hb:"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// newRecord validates input and stamps the creation time. Year is fixed here
// and never recomputed.
func newRecord(now time.Time, ownerID uint, amount int64, source, note string) (models.RedPacket, error) {
	if amount <= 0 {
		return models.RedPacket{}, apperr.Validation(apperr.CodeInvalidAmount, "amount must be a positive integer")
	}
	return models.RedPacket{
		UserID:    ownerID,
		Amount:    amount,
		Source:    utils.SanitizeText(source, MaxSourceLen),
		Note:      utils.SanitizeText(note, MaxNoteLen),
		Year:      now.Year(),
		CreatedAt: now,
	}, nil
}

// sortNewestFirst orders by created_at desc, then id desc.
func sortNewestFirst(records []models.RedPacket) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
}
