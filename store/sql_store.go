package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/cppla/hongbao/apperr"
	"github.com/cppla/hongbao/models"
)

// SQLStore is the relational RecordStore. Every operation is one statement.
type SQLStore struct {
	db   *gorm.DB
	opts options
}

var (
	_ RecordStore       = (*SQLStore)(nil)
	_ LeaderboardSource = (*SQLStore)(nil)
)

// NewSQLStore wraps an open gorm handle.
func NewSQLStore(db *gorm.DB, opts ...Option) *SQLStore {
	return &SQLStore{db: db, opts: buildOptions(opts)}
}

func (s *SQLStore) scoped(ctx context.Context, ownerID uint, year *int) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.RedPacket{}).Where("user_id = ?", ownerID)
	if year != nil {
		q = q.Where("year = ?", *year)
	}
	return q
}

func (s *SQLStore) Add(ctx context.Context, ownerID uint, amount int64, source, note string) (models.RedPacket, error) {
	rec, err := newRecord(s.opts.now(), ownerID, amount, source, note)
	if err != nil {
		return rec, err
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return models.RedPacket{}, apperr.Internal(fmt.Errorf("insert red packet: %w", err))
	}
	return rec, nil
}

func (s *SQLStore) List(ctx context.Context, ownerID uint, year *int) ([]models.RedPacket, error) {
	records := make([]models.RedPacket, 0)
	if err := s.scoped(ctx, ownerID, year).Order("created_at DESC").Order("id DESC").Find(&records).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("list red packets: %w", err))
	}
	return records, nil
}

func (s *SQLStore) Remove(ctx context.Context, id, ownerID uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.RedPacket{})
	if res.Error != nil {
		return apperr.Internal(fmt.Errorf("delete red packet %d: %w", id, res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.ErrRecordNotFound
	}
	return nil
}

func (s *SQLStore) RemoveAll(ctx context.Context, ownerID uint) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", ownerID).Delete(&models.RedPacket{})
	if res.Error != nil {
		return 0, apperr.Internal(fmt.Errorf("delete red packets: %w", res.Error))
	}
	return res.RowsAffected, nil
}

func (s *SQLStore) RemoveYear(ctx context.Context, ownerID uint, year int) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ? AND year = ?", ownerID, year).Delete(&models.RedPacket{})
	if res.Error != nil {
		return 0, apperr.Internal(fmt.Errorf("delete red packets of %d: %w", year, res.Error))
	}
	return res.RowsAffected, nil
}

func (s *SQLStore) Total(ctx context.Context, ownerID uint, year *int) (int64, error) {
	var total int64
	if err := s.scoped(ctx, ownerID, year).Select("COALESCE(SUM(amount), 0)").Scan(&total).Error; err != nil {
		return 0, apperr.Internal(fmt.Errorf("sum red packets: %w", err))
	}
	return total, nil
}

func (s *SQLStore) Years(ctx context.Context, ownerID uint) ([]int, error) {
	years := make([]int, 0)
	if err := s.scoped(ctx, ownerID, nil).Distinct("year").Order("year DESC").Pluck("year", &years).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("list years: %w", err))
	}
	return years, nil
}

// PublicRecords returns the year's records of public users, oldest first so
// ranking ties fall back to first appearance. User is preloaded for labels.
func (s *SQLStore) PublicRecords(ctx context.Context, year int) ([]models.RedPacket, error) {
	public := s.db.Model(&models.User{}).Select("id").Where("is_public = ?", true)
	records := make([]models.RedPacket, 0)
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("user_id IN (?)", public).
		Where("year = ?", year).
		Order("created_at ASC").Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("public red packets: %w", err))
	}
	return records, nil
}
