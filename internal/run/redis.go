package run

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"trainer/internal/apperrors"
)

// RedisStore is the production Store backed by a shared Redis instance.
//
// Single-key reads and writes are atomic in Redis. The multi-key invariants
// (no status after terminal, no heartbeat after terminal) are enforced by
// read-before-write; the residual check-then-act race is benign because no
// consumer trusts heartbeat or non-terminal status once a terminal status is
// observable.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store from a redis:// URL.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, apperrors.Internal("run.parseRedisURL", err)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// NewRedisStoreFromClient wraps an existing client, sharing its pool.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SetStatus(ctx context.Context, runID string, status Status) error {
	if !status.Valid() {
		return apperrors.Validation("status", "unknown status "+string(status))
	}
	current, ok, err := s.GetStatus(ctx, runID)
	if err != nil {
		return err
	}
	if ok && current.IsTerminal() {
		if current == status {
			return nil // benign race: same terminal status written twice
		}
		return apperrors.InvalidTransition(runID, string(current), string(status))
	}
	if err := s.client.Set(ctx, statusKey(runID), string(status), 0).Err(); err != nil {
		return apperrors.Internal("run.setStatus", err)
	}
	return nil
}

func (s *RedisStore) GetStatus(ctx context.Context, runID string) (Status, bool, error) {
	val, err := s.client.Get(ctx, statusKey(runID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.Internal("run.getStatus", err)
	}
	return Status(val), true, nil
}

func (s *RedisStore) SetHeartbeat(ctx context.Context, runID string, ts time.Time) error {
	status, ok, err := s.GetStatus(ctx, runID)
	if err != nil {
		return err
	}
	if ok && status.IsTerminal() {
		return nil // stale heartbeat from a worker that has not observed the terminal status
	}
	if err := s.client.Set(ctx, heartbeatKey(runID), strconv.FormatInt(ts.Unix(), 10), 0).Err(); err != nil {
		return apperrors.Internal("run.setHeartbeat", err)
	}
	return nil
}

func (s *RedisStore) GetHeartbeat(ctx context.Context, runID string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, heartbeatKey(runID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, apperrors.Internal("run.getHeartbeat", err)
	}
	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, apperrors.Internal("run.getHeartbeat", err)
	}
	return time.Unix(unix, 0), true, nil
}

func (s *RedisStore) RequestCancel(ctx context.Context, runID string) error {
	if err := s.client.Set(ctx, cancelKey(runID), "1", 0).Err(); err != nil {
		return apperrors.Internal("run.requestCancel", err)
	}
	return nil
}

func (s *RedisStore) IsCancelRequested(ctx context.Context, runID string) (bool, error) {
	val, err := s.client.Get(ctx, cancelKey(runID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Internal("run.isCancelRequested", err)
	}
	return val == "1", nil
}

func (s *RedisStore) SetMessage(ctx context.Context, runID string, text string) error {
	if err := s.client.Set(ctx, messageKey(runID), text, 0).Err(); err != nil {
		return apperrors.Internal("run.setMessage", err)
	}
	return nil
}

func (s *RedisStore) GetMessage(ctx context.Context, runID string) (string, bool, error) {
	val, err := s.client.Get(ctx, messageKey(runID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.Internal("run.getMessage", err)
	}
	return val, true, nil
}

func (s *RedisStore) SetArtifactPointer(ctx context.Context, runID string, ptr ArtifactPointer) error {
	if err := s.client.Set(ctx, artifactKey(runID), ptr.Encode(), 0).Err(); err != nil {
		return apperrors.Internal("run.setArtifactPointer", err)
	}
	return nil
}

func (s *RedisStore) GetArtifactPointer(ctx context.Context, runID string) (ArtifactPointer, bool, error) {
	val, err := s.client.Get(ctx, artifactKey(runID)).Result()
	if errors.Is(err, redis.Nil) {
		return ArtifactPointer{}, false, nil
	}
	if err != nil {
		return ArtifactPointer{}, false, apperrors.Internal("run.getArtifactPointer", err)
	}
	return DecodePointer(val), true, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return apperrors.Internal("run.ping", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Verify RedisStore implements Store
var _ Store = (*RedisStore)(nil)
