package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/retailiq/customer-segmentation/internal/domain/entities"
	"github.com/retailiq/customer-segmentation/internal/domain/repositories"
	"github.com/retailiq/customer-segmentation/internal/infrastructure/observability"
)

// SegmentationRequest carries the per-invocation dispatch flags.
type SegmentationRequest struct {
	SendMessages bool
	Limit        int
}

// SegmentationResult is the combined pipeline output handed to entry points.
type SegmentationResult struct {
	RunID        string
	SnapshotDate time.Time
	Summary      entities.SegmentSummary
	Rows         []*entities.CustomerFeatures
	Dispatch     *entities.DispatchReport
}

// SegmentationService runs the full pipeline: clean, aggregate, score,
// optionally dispatch, optionally archive. Stateless per invocation; every
// run snapshot-dates from its own input.
type SegmentationService struct {
	cleaner   *CleaningService
	features  *FeatureService
	scorer    *ScoringService
	messenger *MessagingService
	runRepo   repositories.RunRepository
}

// NewSegmentationService composes the pipeline. runRepo may be nil, in
// which case runs are not archived.
func NewSegmentationService(
	cleaner *CleaningService,
	features *FeatureService,
	scorer *ScoringService,
	messenger *MessagingService,
	runRepo repositories.RunRepository,
) *SegmentationService {
	return &SegmentationService{
		cleaner:   cleaner,
		features:  features,
		scorer:    scorer,
		messenger: messenger,
		runRepo:   runRepo,
	}
}

// Run executes one pipeline invocation over the supplied raw table.
func (s *SegmentationService) Run(ctx context.Context, table *entities.TransactionTable, req SegmentationRequest) (*SegmentationResult, error) {
	logger := observability.LoggerFromContext(ctx)

	transactions, err := s.cleaner.Clean(table)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Int("raw_rows", len(table.Rows)).
		Int("cleaned_rows", len(transactions)).
		Msg("transactions cleaned")

	rows, snapshotDate, err := s.features.Derive(transactions)
	if err != nil {
		return nil, err
	}

	if err := s.scorer.Score(rows); err != nil {
		return nil, err
	}

	result := &SegmentationResult{
		RunID:        uuid.New().String(),
		SnapshotDate: snapshotDate,
		Summary:      s.scorer.Summarize(rows),
		Rows:         rows,
	}

	if req.SendMessages {
		report := s.messenger.Dispatch(ctx, rows, req.Limit)
		result.Dispatch = &report
		logger.Info().
			Int("attempted", report.Attempted).
			Int("sent", report.Sent).
			Int("failed", report.Failed).
			Int("skipped", report.Skipped).
			Msg("message dispatch finished")
	}

	s.archive(ctx, result)

	return result, nil
}

// archive persists the run when a repository is configured. Archive
// failures never fail the invocation; the result is already computed.
func (s *SegmentationService) archive(ctx context.Context, result *SegmentationResult) {
	if s.runRepo == nil {
		return
	}

	run := &entities.SegmentationRun{
		ID:            result.RunID,
		SnapshotDate:  result.SnapshotDate,
		CustomerCount: len(result.Rows),
		Summary:       result.Summary,
		CreatedAt:     time.Now().UTC(),
	}
	if result.Dispatch != nil {
		run.EmailsSent = result.Dispatch.Sent
	}

	if err := s.runRepo.Create(ctx, run, result.Rows); err != nil {
		observability.LoggerFromContext(ctx).Error().
			Err(err).
			Str("run_id", run.ID).
			Msg("failed to archive segmentation run")
	}
}
