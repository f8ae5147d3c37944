package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/gridarbiter/internal/apperror"
	"github.com/rocketscienceinc/gridarbiter/internal/entity"
)

const (
	matchKeyPrefix   = "match:"
	recentMatchesKey = "matches:recent"

	DefaultRecentLimit = 100
)

type MatchRepository interface {
	Save(ctx context.Context, record *entity.MatchRecord) error
	GetByID(ctx context.Context, id string) (*entity.MatchRecord, error)
	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]*entity.MatchRecord, error)
}

type dbMatch struct {
	client      *redis.Client
	ttl         time.Duration
	recentLimit int64
}

// NewMatchRepository - stores records as JSON under match:<id>. A zero ttl keeps them forever.
func NewMatchRepository(client *redis.Client, ttl time.Duration, recentLimit int) MatchRepository {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}

	return &dbMatch{
		client:      client,
		ttl:         ttl,
		recentLimit: int64(recentLimit),
	}
}

func (that *dbMatch) Save(ctx context.Context, record *entity.MatchRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("could not marshal match: %w", err)
	}

	pipe := that.client.TxPipeline()
	pipe.Set(ctx, matchKeyPrefix+record.ID, recordJSON, that.ttl)
	pipe.LRem(ctx, recentMatchesKey, 0, record.ID)
	pipe.LPush(ctx, recentMatchesKey, record.ID)
	pipe.LTrim(ctx, recentMatchesKey, 0, that.recentLimit-1)

	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set match: %w", err)
	}

	return nil
}

func (that *dbMatch) GetByID(ctx context.Context, id string) (*entity.MatchRecord, error) {
	response, err := that.client.Get(ctx, matchKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrMatchNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w by id", err)
	}

	var record entity.MatchRecord
	if err = json.Unmarshal([]byte(response), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match: %w", err)
	}

	return &record, nil
}

func (that *dbMatch) List(ctx context.Context, limit int) ([]*entity.MatchRecord, error) {
	if limit <= 0 {
		return []*entity.MatchRecord{}, nil
	}

	ids, err := that.client.LRange(ctx, recentMatchesKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list match ids: %w", err)
	}

	records := make([]*entity.MatchRecord, 0, len(ids))
	if len(ids) == 0 {
		return records, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, matchKeyPrefix+id)
	}

	values, err := that.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}

	for _, value := range values {
		// expired records leave their id behind in the list
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var record entity.MatchRecord
		if err = json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal match: %w", err)
		}

		records = append(records, &record)
	}

	return records, nil
}
