package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/hongbao/apperr"
	"github.com/cppla/hongbao/models"
	"github.com/cppla/hongbao/stats"
)

const maxTxRetries = 3

// pipeliner is satisfied by both *redis.Client and *redis.Tx.
type pipeliner interface {
	Pipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// RedisStore is the key-indexed RecordStore used by the local profile.
//
// Layout under the key prefix:
//
//	seq                     INCR id sequence
//	rec:<id>                hash of one record
//	owner:<owner>           zset of ids scored by created_at (micros)
//	owner:<owner>:y:<year>  same, restricted to one year
type RedisStore struct {
	rc   *redis.Client
	opts options
}

var _ RecordStore = (*RedisStore)(nil)

// NewRedisStore wraps a connected client.
func NewRedisStore(rc *redis.Client, opts ...Option) *RedisStore {
	return &RedisStore{rc: rc, opts: buildOptions(opts)}
}

func (s *RedisStore) seqKey() string { return s.opts.prefix + "seq" }

func (s *RedisStore) recKey(id uint) string {
	return s.opts.prefix + "rec:" + strconv.FormatUint(uint64(id), 10)
}

func (s *RedisStore) ownerKey(ownerID uint) string {
	return s.opts.prefix + "owner:" + strconv.FormatUint(uint64(ownerID), 10)
}

func (s *RedisStore) yearKey(ownerID uint, year int) string {
	return s.ownerKey(ownerID) + ":y:" + strconv.Itoa(year)
}

func (s *RedisStore) indexKey(ownerID uint, year *int) string {
	if year == nil {
		return s.ownerKey(ownerID)
	}
	return s.yearKey(ownerID, *year)
}

func (s *RedisStore) Add(ctx context.Context, ownerID uint, amount int64, source, note string) (models.RedPacket, error) {
	rec, err := newRecord(s.opts.now(), ownerID, amount, source, note)
	if err != nil {
		return rec, err
	}

	id, err := s.rc.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return models.RedPacket{}, apperr.Internal(fmt.Errorf("next record id: %w", err))
	}
	rec.ID = uint(id)

	member := redis.Z{Score: float64(rec.CreatedAt.UnixMicro()), Member: rec.ID}
	_, err = s.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.recKey(rec.ID), encodeRecord(rec))
		pipe.ZAdd(ctx, s.ownerKey(ownerID), member)
		pipe.ZAdd(ctx, s.yearKey(ownerID, rec.Year), member)
		return nil
	})
	if err != nil {
		return models.RedPacket{}, apperr.Internal(fmt.Errorf("store record %d: %w", rec.ID, err))
	}
	return rec, nil
}

func (s *RedisStore) List(ctx context.Context, ownerID uint, year *int) ([]models.RedPacket, error) {
	ids, err := s.rc.ZRevRange(ctx, s.indexKey(ownerID, year), 0, -1).Result()
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("read index: %w", err))
	}
	records, err := s.load(ctx, s.rc, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	sortNewestFirst(records)
	return records, nil
}

// load fetches record hashes in one round trip. Index entries whose hash is
// gone are skipped.
func (s *RedisStore) load(ctx context.Context, c pipeliner, ids []string) ([]models.RedPacket, error) {
	records := make([]models.RedPacket, 0, len(ids))
	if len(ids) == 0 {
		return records, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := c.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, raw := range ids {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("bad index member %q: %w", raw, err)
			}
			cmds[i] = pipe.HGetAll(ctx, s.recKey(uint(id)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rec, err := decodeRecord(fields)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *RedisStore) Remove(ctx context.Context, id, ownerID uint) error {
	key := s.recKey(id)
	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return apperr.ErrRecordNotFound
		}
		rec, err := decodeRecord(fields)
		if err != nil {
			return err
		}
		if rec.UserID != ownerID {
			return apperr.ErrRecordNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, s.ownerKey(ownerID), rec.ID)
			pipe.ZRem(ctx, s.yearKey(ownerID, rec.Year), rec.ID)
			return nil
		})
		return err
	}
	return s.watch(ctx, txf, fmt.Sprintf("delete record %d", id), key)
}

func (s *RedisStore) RemoveAll(ctx context.Context, ownerID uint) (int64, error) {
	return s.removeIndexed(ctx, ownerID, nil)
}

func (s *RedisStore) RemoveYear(ctx context.Context, ownerID uint, year int) (int64, error) {
	return s.removeIndexed(ctx, ownerID, &year)
}

// removeIndexed deletes every record referenced by one index in a single
// MULTI/EXEC, retrying when a concurrent write touches the index.
func (s *RedisStore) removeIndexed(ctx context.Context, ownerID uint, year *int) (int64, error) {
	index := s.indexKey(ownerID, year)
	var deleted int64
	txf := func(tx *redis.Tx) error {
		ids, err := tx.ZRange(ctx, index, 0, -1).Result()
		if err != nil {
			return err
		}
		records, err := s.load(ctx, tx, ids)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, rec := range records {
				pipe.Del(ctx, s.recKey(rec.ID))
				pipe.ZRem(ctx, s.ownerKey(ownerID), rec.ID)
				pipe.ZRem(ctx, s.yearKey(ownerID, rec.Year), rec.ID)
			}
			pipe.Del(ctx, index)
			return nil
		})
		deleted = int64(len(records))
		return err
	}
	if err := s.watch(ctx, txf, "delete records", index); err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *RedisStore) watch(ctx context.Context, txf func(*redis.Tx) error, op string, keys ...string) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = s.rc.Watch(ctx, txf, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperr.Internal(fmt.Errorf("%s: %w", op, err))
}

// Total and Years scan the owner's records; the local store is small.
func (s *RedisStore) Total(ctx context.Context, ownerID uint, year *int) (int64, error) {
	records, err := s.List(ctx, ownerID, year)
	if err != nil {
		return 0, err
	}
	return stats.Sum(records), nil
}

func (s *RedisStore) Years(ctx context.Context, ownerID uint) ([]int, error) {
	records, err := s.List(ctx, ownerID, nil)
	if err != nil {
		return nil, err
	}
	return stats.Years(records), nil
}

func encodeRecord(r models.RedPacket) map[string]interface{} {
	return map[string]interface{}{
		"id":         r.ID,
		"user_id":    r.UserID,
		"amount":     r.Amount,
		"source":     r.Source,
		"note":       r.Note,
		"year":       r.Year,
		"created_at": r.CreatedAt.UnixNano(),
	}
}

func decodeRecord(f map[string]string) (models.RedPacket, error) {
	var (
		r   models.RedPacket
		err error
	)
	parseUint := func(k string) uint {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = strconv.ParseUint(f[k], 10, 64)
		return uint(v)
	}
	parseInt := func(k string) int64 {
		if err != nil {
			return 0
		}
		var v int64
		v, err = strconv.ParseInt(f[k], 10, 64)
		return v
	}

	r.ID = parseUint("id")
	r.UserID = parseUint("user_id")
	r.Amount = parseInt("amount")
	r.Year = int(parseInt("year"))
	created := parseInt("created_at")
	if err != nil {
		return models.RedPacket{}, fmt.Errorf("decode record %q: %w", f["id"], err)
	}
	r.CreatedAt = time.Unix(0, created)
	r.Source = f["source"]
	r.Note = f["note"]
	return r, nil
}
