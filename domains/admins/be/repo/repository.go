package repo

import (
	"context"

	"github.com/steelworks-digital/vms-server/platform/go/persistence"
)

// Repository defines the persistence operations required by the admins service.
type Repository interface {
	Create(ctx context.Context, params persistence.CreateAdminParams) (persistence.Admin, error)
	GetByUsername(ctx context.Context, username string) (persistence.Admin, error)
}

type postgresRepository struct {
	admins *persistence.AdminStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(admins *persistence.AdminStore) Repository {
	if admins == nil {
		panic("admin store is required")
	}
	return &postgresRepository{admins: admins}
}

func (r *postgresRepository) Create(ctx context.Context, params persistence.CreateAdminParams) (persistence.Admin, error) {
	return r.admins.CreateAdmin(ctx, params)
}

func (r *postgresRepository) GetByUsername(ctx context.Context, username string) (persistence.Admin, error) {
	return r.admins.GetAdminByUsername(ctx, username)
}
