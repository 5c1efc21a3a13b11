package repositories

import (
	"context"

	"github.com/retailiq/customer-segmentation/internal/domain/entities"
)

// RunFilter narrows run archive listings.
type RunFilter struct {
	Limit  int
	Offset int
}

// RunRepository archives segmentation runs and their scored feature rows.
// The archive is an audit artifact only: feature rows are derived fresh on
// every invocation and never read back into the pipeline.
type RunRepository interface {
	Create(ctx context.Context, run *entities.SegmentationRun, rows []*entities.CustomerFeatures) error
	GetByID(ctx context.Context, id string) (*entities.SegmentationRun, []*entities.CustomerFeatures, error)
	List(ctx context.Context, filter RunFilter) ([]*entities.SegmentationRun, error)
}
