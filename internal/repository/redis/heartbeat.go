package redisrepository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/repository"
)

const (
	fieldTimestamp = "timestamp"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// HeartbeatStore keeps one hash per label: timestamp, created_at, updated_at as unix nanos.
type HeartbeatStore struct {
	Client    *redis.Client
	KeyPrefix string
}

var _ repository.HeartbeatRepository = (*HeartbeatStore)(nil)

func NewHeartbeatStore(opt *redis.Options, keyPrefix string) *HeartbeatStore {
	return &HeartbeatStore{Client: redis.NewClient(opt), KeyPrefix: keyPrefix}
}

func (s *HeartbeatStore) key(label string) string {
	return s.KeyPrefix + label
}

func (s *HeartbeatStore) GetHeartbeat(ctx context.Context, label string) (*models.Heartbeat, error) {
	if s == nil || s.Client == nil {
		return nil, nil
	}
	vals, err := s.Client.HGetAll(ctx, s.key(label)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	ts, err := parseNanos(vals[fieldTimestamp])
	if err != nil {
		return nil, fmt.Errorf("heartbeat %s: %w", label, err)
	}
	created, _ := parseNanos(vals[fieldCreatedAt])
	updated, _ := parseNanos(vals[fieldUpdatedAt])
	return &models.Heartbeat{
		Label:     label,
		Timestamp: ts,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func (s *HeartbeatStore) UpsertHeartbeat(ctx context.Context, label string, ts time.Time) (*models.Heartbeat, error) {
	if s == nil || s.Client == nil {
		return nil, nil
	}
	now := time.Now().UTC()
	key := s.key(label)
	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldCreatedAt, strconv.FormatInt(now.UnixNano(), 10))
		pipe.HSet(ctx, key,
			fieldTimestamp, strconv.FormatInt(ts.UTC().UnixNano(), 10),
			fieldUpdatedAt, strconv.FormatInt(now.UnixNano(), 10),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetHeartbeat(ctx, label)
}

func (s *HeartbeatStore) Ping(ctx context.Context) error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Ping(ctx).Err()
}

func (s *HeartbeatStore) Close() error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Close()
}

func parseNanos(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty value")
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}
