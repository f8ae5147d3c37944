package repository

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"github.com/rocketscienceinc/gridarbiter/internal/apperror"
	"github.com/rocketscienceinc/gridarbiter/internal/entity"
)

// memoryMatch keeps the most recent records for the lifetime of the process.
type memoryMatch struct {
	limit int

	mu      sync.RWMutex
	records map[string]*entity.MatchRecord
	order   []string
}

func NewMemoryMatchRepository(limit int) MatchRepository {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	return &memoryMatch{
		limit:   limit,
		records: make(map[string]*entity.MatchRecord),
	}
}

func (that *memoryMatch) Save(_ context.Context, record *entity.MatchRecord) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	stored := *record
	if _, ok := that.records[record.ID]; ok {
		that.order = lo.Without(that.order, record.ID)
	}

	that.records[record.ID] = &stored
	that.order = append(that.order, record.ID)

	if len(that.order) > that.limit {
		evicted := that.order[:len(that.order)-that.limit]
		for _, id := range evicted {
			delete(that.records, id)
		}

		that.order = append([]string(nil), that.order[len(evicted):]...)
	}

	return nil
}

func (that *memoryMatch) GetByID(_ context.Context, id string) (*entity.MatchRecord, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	record, ok := that.records[id]
	if !ok {
		return nil, apperror.ErrMatchNotFound
	}

	stored := *record

	return &stored, nil
}

func (that *memoryMatch) List(_ context.Context, limit int) ([]*entity.MatchRecord, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	if limit <= 0 {
		return []*entity.MatchRecord{}, nil
	}

	records := make([]*entity.MatchRecord, 0, lo.Min([]int{limit, len(that.order)}))
	for i := len(that.order) - 1; i >= 0 && len(records) < limit; i-- {
		stored := *that.records[that.order[i]]
		records = append(records, &stored)
	}

	return records, nil
}
