package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	errx "github.com/insightbot-core/engine/internal/core/error"
	"github.com/insightbot-core/engine/internal/dataset"
	"github.com/insightbot-core/engine/internal/engine/model"
	logx "github.com/insightbot-core/engine/pkg/logger"
)

// RedisStateRepository checkpoints conversation state and session tables
// in Redis as JSON blobs with a sliding TTL.
type RedisStateRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStateRepository(rdb redis.Cmdable, ttl time.Duration) *RedisStateRepository {
	return &RedisStateRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisStateRepository) stateKey(sessionID string) string {
	return fmt.Sprintf("session:%s:state", sessionID)
}

func (r *RedisStateRepository) tablesKey(sessionID string) string {
	return fmt.Sprintf("session:%s:tables", sessionID)
}

func (r *RedisStateRepository) LoadState(ctx context.Context, sessionID string) (*model.ConversationState, error) {
	key := r.stateKey(sessionID)

	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return model.NewConversationState(sessionID), nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load state from redis")
		return nil, errx.WrapRedis(err)
	}

	var st model.ConversationState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to unmarshal state")
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &st, nil
}

func (r *RedisStateRepository) SaveState(ctx context.Context, state *model.ConversationState) error {
	b, err := json.Marshal(state)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", state.SessionID).Msg("failed to marshal state")
		return fmt.Errorf("marshal state: %w", err)
	}
	key := r.stateKey(state.SessionID)

	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save state to redis")
		return errx.WrapRedis(err)
	}
	// keep tables alive as long as the state
	if r.ttl > 0 {
		if err := r.rdb.Expire(ctx, r.tablesKey(state.SessionID), r.ttl).Err(); err != nil {
			logx.Warn().Err(err).Str("sessionID", state.SessionID).Msg("failed to refresh tables TTL")
		}
	}
	return nil
}

func (r *RedisStateRepository) ClearState(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, r.stateKey(sessionID), r.tablesKey(sessionID)).Err(); err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to clear session from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStateRepository) SaveTables(ctx context.Context, sessionID string, tables map[string]*dataset.Table) error {
	b, err := json.Marshal(tables)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to marshal tables")
		return fmt.Errorf("marshal tables: %w", err)
	}
	key := r.tablesKey(sessionID)

	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save tables to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStateRepository) LoadTables(ctx context.Context, sessionID string) (map[string]*dataset.Table, error) {
	key := r.tablesKey(sessionID)

	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errx.New(err, http.StatusNotFound, errx.SessionNotFoundMessage)
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load tables from redis")
		return nil, errx.WrapRedis(err)
	}

	tables := map[string]*dataset.Table{}
	if err := json.Unmarshal([]byte(raw), &tables); err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to unmarshal tables")
		return nil, fmt.Errorf("unmarshal tables: %w", err)
	}
	return tables, nil
}

var _ model.StateRepository = (*RedisStateRepository)(nil)
var _ model.TableStore = (*RedisStateRepository)(nil)
