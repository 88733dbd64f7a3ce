package event

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/erp/warehouse/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOutboxRepo struct {
	entries   map[uuid.UUID]*shared.OutboxEntry
	updateErr error
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
}

func (r *fakeOutboxRepo) add(status shared.OutboxStatus) *shared.OutboxEntry {
	id := uuid.New()
	e := &shared.OutboxEntry{
		ID:            id,
		EventID:       uuid.New(),
		EventType:     "inventory.damage.recorded",
		AggregateID:   "42",
		AggregateType: "DamageRecord",
		Status:        status,
		MaxRetries:    5,
	}
	if status == shared.OutboxStatusDead {
		e.RetryCount = 5
		e.LastError = "handler failed"
	}
	r.entries[id] = e
	return e
}

func (r *fakeOutboxRepo) FindDead(_ context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	var dead []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status == shared.OutboxStatusDead {
			dead = append(dead, e)
		}
	}
	sort.Slice(dead, func(i, j int) bool { return dead[i].ID.String() < dead[j].ID.String() })
	total := int64(len(dead))
	start := (page - 1) * pageSize
	if start >= len(dead) {
		return nil, total, nil
	}
	end := min(start+pageSize, len(dead))
	return dead[start:end], total, nil
}

func (r *fakeOutboxRepo) FindByID(_ context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return e, nil
}

func (r *fakeOutboxRepo) Update(_ context.Context, entry *shared.OutboxEntry) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.entries[entry.ID] = entry
	return nil
}

func (r *fakeOutboxRepo) CountByStatus(_ context.Context) (map[shared.OutboxStatus]int64, error) {
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func TestOutboxService_GetDeadLetterEntries(t *testing.T) {
	repo := newFakeOutboxRepo()
	for range 3 {
		repo.add(shared.OutboxStatusDead)
	}
	repo.add(shared.OutboxStatusSent)
	svc := NewOutboxService(repo, zap.NewNop())

	t.Run("defaults page and size", func(t *testing.T) {
		result, err := svc.GetDeadLetterEntries(context.Background(), OutboxFilter{})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Page)
		assert.Equal(t, 20, result.PageSize)
		assert.Equal(t, int64(3), result.Total)
		assert.Len(t, result.Items, 3)
		assert.Equal(t, 1, result.TotalPages)
		assert.Equal(t, "handler failed", result.Items[0].LastError)
	})

	t.Run("caps page size", func(t *testing.T) {
		result, err := svc.GetDeadLetterEntries(context.Background(), OutboxFilter{Page: 2, PageSize: 500})
		require.NoError(t, err)
		assert.Equal(t, 100, result.PageSize)
		assert.Empty(t, result.Items)
	})
}

func TestOutboxService_RetryDeadEntry(t *testing.T) {
	repo := newFakeOutboxRepo()
	dead := repo.add(shared.OutboxStatusDead)
	sent := repo.add(shared.OutboxStatusSent)
	svc := NewOutboxService(repo, zap.NewNop())

	t.Run("requeues a dead entry", func(t *testing.T) {
		dto, err := svc.RetryDeadEntry(context.Background(), dead.ID)
		require.NoError(t, err)
		assert.Equal(t, string(shared.OutboxStatusPending), dto.Status)
		assert.Zero(t, dto.RetryCount)
		assert.Empty(t, dto.LastError)
	})

	t.Run("refuses an entry that is not dead", func(t *testing.T) {
		_, err := svc.RetryDeadEntry(context.Background(), sent.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := svc.GetEntry(context.Background(), uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestOutboxService_RetryAllDeadEntries(t *testing.T) {
	t.Run("requeues every dead entry", func(t *testing.T) {
		repo := newFakeOutboxRepo()
		for range 105 {
			repo.add(shared.OutboxStatusDead)
		}
		svc := NewOutboxService(repo, zap.NewNop())

		n, err := svc.RetryAllDeadEntries(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(105), n)

		stats, err := svc.GetStats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(105), stats.Pending)
		assert.Zero(t, stats.Dead)
		assert.Equal(t, int64(105), stats.Total)
	})

	t.Run("reports update failures without looping", func(t *testing.T) {
		repo := newFakeOutboxRepo()
		repo.add(shared.OutboxStatusDead)
		repo.updateErr = errors.New("db down")
		svc := NewOutboxService(repo, zap.NewNop())

		n, err := svc.RetryAllDeadEntries(context.Background())
		assert.Zero(t, n)
		assert.ErrorContains(t, err, "db down")
	})
}
