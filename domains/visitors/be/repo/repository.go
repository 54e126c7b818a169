package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/steelworks-digital/vms-server/platform/go/persistence"
)

// Repository defines the persistence operations required by the visitors service.
type Repository interface {
	Insert(ctx context.Context, params persistence.CreateVisitorParams) (persistence.Visitor, error)
	NextBatchSequence(ctx context.Context, dateKey string) (int64, error)
	LastBatchNumberForPrefix(ctx context.Context, prefix string) (string, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Visitor, error)
	GetIncludingDeleted(ctx context.Context, id uuid.UUID) (persistence.Visitor, error)
	List(ctx context.Context, params persistence.ListVisitorsParams) ([]persistence.Visitor, error)
	SearchByIdentity(ctx context.Context, mobile, nationalID string) (persistence.Visitor, error)
	HasBlacklistedIdentity(ctx context.Context, mobile, nationalID string) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, entryTime, exitTime *time.Time) error
	UpdateDetails(ctx context.Context, id uuid.UUID, params persistence.UpdateVisitorParams) (persistence.Visitor, error)
	SetBlacklisted(ctx context.Context, id uuid.UUID, blacklisted bool) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	visitors *persistence.VisitorStore
	counters *persistence.CounterStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(visitors *persistence.VisitorStore, counters *persistence.CounterStore) Repository {
	if visitors == nil {
		panic("visitor store is required")
	}
	if counters == nil {
		panic("counter store is required")
	}
	return &postgresRepository{visitors: visitors, counters: counters}
}

func (r *postgresRepository) Insert(ctx context.Context, params persistence.CreateVisitorParams) (persistence.Visitor, error) {
	return r.visitors.CreateVisitor(ctx, params)
}

func (r *postgresRepository) NextBatchSequence(ctx context.Context, dateKey string) (int64, error) {
	return r.counters.NextSequence(ctx, dateKey)
}

func (r *postgresRepository) LastBatchNumberForPrefix(ctx context.Context, prefix string) (string, error) {
	return r.visitors.LastBatchNumberForPrefix(ctx, prefix)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Visitor, error) {
	return r.visitors.GetVisitor(ctx, id)
}

func (r *postgresRepository) GetIncludingDeleted(ctx context.Context, id uuid.UUID) (persistence.Visitor, error) {
	return r.visitors.GetVisitorIncludingDeleted(ctx, id)
}

func (r *postgresRepository) List(ctx context.Context, params persistence.ListVisitorsParams) ([]persistence.Visitor, error) {
	return r.visitors.ListVisitors(ctx, params)
}

func (r *postgresRepository) SearchByIdentity(ctx context.Context, mobile, nationalID string) (persistence.Visitor, error) {
	return r.visitors.SearchVisitorByIdentity(ctx, mobile, nationalID)
}

func (r *postgresRepository) HasBlacklistedIdentity(ctx context.Context, mobile, nationalID string) (bool, error) {
	return r.visitors.HasBlacklistedIdentity(ctx, mobile, nationalID)
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, entryTime, exitTime *time.Time) error {
	return r.visitors.UpdateVisitorStatus(ctx, id, status, entryTime, exitTime)
}

func (r *postgresRepository) UpdateDetails(ctx context.Context, id uuid.UUID, params persistence.UpdateVisitorParams) (persistence.Visitor, error) {
	return r.visitors.UpdateVisitorDetails(ctx, id, params)
}

func (r *postgresRepository) SetBlacklisted(ctx context.Context, id uuid.UUID, blacklisted bool) error {
	return r.visitors.SetVisitorBlacklisted(ctx, id, blacklisted)
}

func (r *postgresRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.visitors.SoftDeleteVisitor(ctx, id)
}
