package services

import (
	"fmt"

	"github.com/retailiq/customer-segmentation/internal/domain/entities"
	"github.com/retailiq/customer-segmentation/internal/domain/providers"
	apperrors "github.com/retailiq/customer-segmentation/pkg/errors"
)

// ScoringService assigns each feature row a cluster id and segment name
// using the fitted scaler and cluster model loaded at process start.
type ScoringService struct {
	scaler providers.FeatureScaler
	model  providers.ClusterModel
}

// NewScoringService creates a scoring service over pre-fitted artifacts.
func NewScoringService(scaler providers.FeatureScaler, model providers.ClusterModel) *ScoringService {
	return &ScoringService{scaler: scaler, model: model}
}

// Score annotates rows in place with cluster id and segment name. Row order
// is preserved end-to-end: prediction i belongs to rows[i]. The feature
// columns feed the scaler as [recency, frequency, monetary], the order the
// artifacts were fitted on.
func (s *ScoringService) Score(rows []*entities.CustomerFeatures) error {
	if s.scaler == nil || s.model == nil {
		return apperrors.NewModelUnavailableError("scoring requested but model artifacts are not loaded", nil)
	}
	if len(rows) == 0 {
		return apperrors.NewEmptyInputError("no feature rows to score")
	}

	rfm := make([][]float64, len(rows))
	for i, row := range rows {
		rfm[i] = []float64{
			float64(row.Recency),
			float64(row.Frequency),
			row.Monetary.InexactFloat64(),
		}
	}

	scaled, err := s.scaler.Transform(rfm)
	if err != nil {
		return apperrors.NewInternalError("scaler transform failed", err)
	}

	clusters, err := s.model.Predict(scaled)
	if err != nil {
		return apperrors.NewInternalError("cluster prediction failed", err)
	}
	if len(clusters) != len(rows) {
		return apperrors.NewInternalError(
			fmt.Sprintf("cluster model returned %d predictions for %d rows", len(clusters), len(rows)), nil)
	}

	for i, cluster := range clusters {
		rows[i].Cluster = cluster
		rows[i].Segment = entities.SegmentForCluster(cluster)
	}

	return nil
}

// Summarize counts scored rows per segment name.
func (s *ScoringService) Summarize(rows []*entities.CustomerFeatures) entities.SegmentSummary {
	summary := make(entities.SegmentSummary)
	for _, row := range rows {
		summary[row.Segment]++
	}
	return summary
}
