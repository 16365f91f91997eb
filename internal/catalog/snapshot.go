package catalog

import (
	"context"

	"supermarket/terminal/internal/domain"
)

// SnapshotCache persists the last refreshed product snapshot outside the
// process so a restarted terminal can serve search before its first
// network refresh. It is best-effort: failures are logged, never fatal.
type SnapshotCache interface {
	Load(ctx context.Context) ([]domain.Product, bool, error)
	Store(ctx context.Context, products []domain.Product) error
}

type NoopSnapshotCache struct{}

func (NoopSnapshotCache) Load(_ context.Context) ([]domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopSnapshotCache) Store(_ context.Context, _ []domain.Product) error {
	return nil
}
