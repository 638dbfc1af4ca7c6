package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists bookings. Implementations must make CompareAndSetStatus
// atomic per booking id.
type Store interface {
	Insert(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id string) (*Booking, error)
	ListByStudent(ctx context.Context, studentID string) ([]*Booking, error)
	ListByMentor(ctx context.Context, mentorID string) ([]*Booking, error)
	ListAll(ctx context.Context) ([]*Booking, error)
	// CompareAndSetStatus moves id from -> to. It returns ErrNotFound for a
	// missing booking and ErrStatusChanged when the stored status is not from.
	CompareAndSetStatus(ctx context.Context, id string, from, to Status, at time.Time) error
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

const (
	casStatusNotFound int64 = 0
	casStatusMismatch int64 = 1
	casStatusApplied  int64 = 2
)

const compareAndSetScript = `
local current = redis.call("HGET", KEYS[1], "status")
if not current then
  return 0
end
if current ~= ARGV[1] then
  return 1
end
redis.call("HSET", KEYS[1], "status", ARGV[2], "updated_at", ARGV[3])
redis.call("HINCRBY", KEYS[2], ARGV[1], -1)
redis.call("HINCRBY", KEYS[2], ARGV[2], 1)
return 2
`

var compareAndSetLua = redis.NewScript(compareAndSetScript)

// RedisStore keeps each booking in a hash and indexes it by student, by
// mentor and by creation time.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a [RedisStore]. prefix sets the key namespace.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "mb"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":bk:" + id
}

func (s *RedisStore) studentKey(studentID string) string {
	return s.prefix + ":bks:" + studentID
}

func (s *RedisStore) mentorKey(mentorID string) string {
	return s.prefix + ":bkm:" + mentorID
}

func (s *RedisStore) allKey() string {
	return s.prefix + ":bkall"
}

func (s *RedisStore) statsKey() string {
	return s.prefix + ":bkstat"
}

// Insert writes b and its index entries in one MULTI/EXEC.
func (s *RedisStore) Insert(ctx context.Context, b *Booking) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(b.ID), encodeFields(b))
		pipe.SAdd(ctx, s.studentKey(b.StudentID), b.ID)
		pipe.SAdd(ctx, s.mentorKey(b.MentorID), b.ID)
		pipe.ZAdd(ctx, s.allKey(), redis.Z{Score: float64(b.CreatedAt.UnixMilli()), Member: b.ID})
		pipe.HIncrBy(ctx, s.statsKey(), string(b.Status), 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads one booking.
func (s *RedisStore) Get(ctx context.Context, id string) (*Booking, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return decodeFields(fields)
}

func (s *RedisStore) ListByStudent(ctx context.Context, studentID string) ([]*Booking, error) {
	ids, err := s.redis.SMembers(ctx, s.studentKey(studentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.loadMany(ctx, ids)
}

func (s *RedisStore) ListByMentor(ctx context.Context, mentorID string) ([]*Booking, error) {
	ids, err := s.redis.SMembers(ctx, s.mentorKey(mentorID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.loadMany(ctx, ids)
}

func (s *RedisStore) ListAll(ctx context.Context) ([]*Booking, error) {
	ids, err := s.redis.ZRange(ctx, s.allKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.loadMany(ctx, ids)
}

// loadMany fetches ids in one pipeline. Ids whose hash is gone are skipped.
func (s *RedisStore) loadMany(ctx context.Context, ids []string) ([]*Booking, error) {
	if len(ids) == 0 {
		return []*Booking{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.key(id))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]*Booking, 0, len(ids))
	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		b, err := decodeFields(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// CompareAndSetStatus runs the status check and write in one Lua script.
func (s *RedisStore) CompareAndSetStatus(ctx context.Context, id string, from, to Status, at time.Time) error {
	res, err := compareAndSetLua.Run(
		ctx,
		s.redis,
		[]string{s.key(id), s.statsKey()},
		string(from),
		string(to),
		at.UTC().Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch res {
	case casStatusApplied:
		return nil
	case casStatusNotFound:
		return ErrNotFound
	case casStatusMismatch:
		return ErrStatusChanged
	default:
		return fmt.Errorf("%w: unexpected script result %d", ErrRedisUnavailable, res)
	}
}

// CountByStatus reads the per-status counters maintained by Insert and the
// compare-and-set script.
func (s *RedisStore) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	raw, err := s.redis.HGetAll(ctx, s.statsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make(map[Status]int64, len(Statuses()))
	for _, st := range Statuses() {
		out[st] = 0
	}
	for k, v := range raw {
		st, err := ParseStatus(k)
		if err != nil {
			continue
		}
		var n int64
		if _, err := fmt.Sscan(v, &n); err != nil {
			return nil, fmt.Errorf("%w: counter %s=%q", ErrCorruptRecord, k, v)
		}
		out[st] = n
	}
	return out, nil
}

func encodeFields(b *Booking) map[string]interface{} {
	return map[string]interface{}{
		"id":         b.ID,
		"student_id": b.StudentID,
		"mentor_id":  b.MentorID,
		"date":       b.Date,
		"time":       b.Time,
		"notes":      b.Notes,
		"status":     string(b.Status),
		"created_at": b.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": b.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeFields(fields map[string]string) (*Booking, error) {
	status, err := ParseStatus(fields["status"])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	created, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("%w: created_at: %v", ErrCorruptRecord, err)
	}
	updated, err := time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("%w: updated_at: %v", ErrCorruptRecord, err)
	}

	if fields["id"] == "" || fields["student_id"] == "" || fields["mentor_id"] == "" {
		return nil, fmt.Errorf("%w: missing identifiers", ErrCorruptRecord)
	}

	return &Booking{
		ID:        fields["id"],
		StudentID: fields["student_id"],
		MentorID:  fields["mentor_id"],
		Date:      fields["date"],
		Time:      fields["time"],
		Notes:     fields["notes"],
		Status:    status,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}
