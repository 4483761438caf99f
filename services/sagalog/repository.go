package sagalog

import (
	"context"
	"time"

	"affiliate-platform/pkg/db/option"
	"affiliate-platform/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repository is the audit trail port. Nothing reads the log to decide the next
// saga action; it exists for diagnosis only.
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	GetBySagaID(ctx context.Context, sagaID string) ([]*Entry, error)
}

type RepositoryParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

type gormRepository struct {
	node    *snowflake.Node
	entries repository.Repository[Entry]
}

func NewRepository(p RepositoryParams) Repository {
	return &gormRepository{
		node:    p.Node,
		entries: repository.ProvideStore[Entry](p.DB),
	}
}

func (r *gormRepository) Append(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = r.node.Generate().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if err := r.entries.Create(ctx, entry); err != nil {
		return err
	}

	zap.L().Info("saga step recorded",
		zap.String("saga_id", entry.SagaID),
		zap.String("step", string(entry.Step)),
		zap.String("status", string(entry.Status)),
	)
	return nil
}

func (r *gormRepository) GetBySagaID(ctx context.Context, sagaID string) ([]*Entry, error) {
	return r.entries.Find(ctx, &Entry{SagaID: sagaID},
		option.WithSortBy(option.QuerySortBy{SortBy: "timestamp", OrderBy: "ASC"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "ASC"}),
	)
}
