package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/shopspring/decimal"

	"github.com/retailiq/customer-segmentation/internal/domain/entities"
	"github.com/retailiq/customer-segmentation/internal/domain/repositories"
	"github.com/retailiq/customer-segmentation/internal/infrastructure/clients/postgres"
	apperrors "github.com/retailiq/customer-segmentation/pkg/errors"
)

const (
	runsTable         = "segmentation_runs"
	runCustomersTable = "segmentation_run_customers"
)

// RunAdapter implements run archive persistence in Postgres.
type RunAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewRunAdapter creates a new run archive adapter.
func NewRunAdapter(client *postgres.Client) repositories.RunRepository {
	return &RunAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create archives a run and its scored rows in one transaction.
func (a *RunAdapter) Create(ctx context.Context, run *entities.SegmentationRun, rows []*entities.CustomerFeatures) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return apperrors.NewInternalError("failed to encode segment summary", err)
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to open archive transaction", err)
	}
	defer tx.Rollback()

	runQuery, runArgs, err := a.db.Insert(runsTable).Rows(goqu.Record{
		"id":             run.ID,
		"snapshot_date":  run.SnapshotDate,
		"customer_count": run.CustomerCount,
		"summary":        summary,
		"emails_sent":    run.EmailsSent,
		"created_at":     run.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build run insert query", err)
	}
	if _, err := tx.ExecContext(ctx, runQuery, runArgs...); err != nil {
		return apperrors.NewInternalError("failed to archive run", err)
	}

	if len(rows) > 0 {
		records := make([]interface{}, 0, len(rows))
		for position, row := range rows {
			records = append(records, goqu.Record{
				"run_id":        run.ID,
				"position":      position,
				"customer_id":   row.CustomerID,
				"name":          sql.NullString{String: row.Name, Valid: row.Name != ""},
				"email":         row.Email,
				"last_purchase": row.LastPurchase,
				"fav_category":  row.FavCategory,
				"recency":       row.Recency,
				"frequency":     row.Frequency,
				"monetary":      row.Monetary.String(),
				"cluster":       row.Cluster,
				"segment":       row.Segment,
			})
		}
		rowsQuery, rowsArgs, err := a.db.Insert(runCustomersTable).Rows(records...).ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build run rows insert query", err)
		}
		if _, err := tx.ExecContext(ctx, rowsQuery, rowsArgs...); err != nil {
			return apperrors.NewInternalError("failed to archive run rows", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit archive transaction", err)
	}
	return nil
}

// GetByID returns one archived run with its scored rows in stored order.
func (a *RunAdapter) GetByID(ctx context.Context, id string) (*entities.SegmentationRun, []*entities.CustomerFeatures, error) {
	query, args, err := a.db.From(runsTable).
		Select("id", "snapshot_date", "customer_count", "summary", "emails_sent", "created_at").
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, nil, apperrors.NewInternalError("failed to build run select query", err)
	}

	run := &entities.SegmentationRun{}
	var summary []byte
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&run.ID, &run.SnapshotDate, &run.CustomerCount, &summary, &run.EmailsSent, &run.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil, apperrors.NewNotFoundError("segmentation run not found")
	}
	if err != nil {
		return nil, nil, apperrors.NewInternalError("failed to load segmentation run", err)
	}
	if err := json.Unmarshal(summary, &run.Summary); err != nil {
		return nil, nil, apperrors.NewInternalError("failed to decode segment summary", err)
	}

	rows, err := a.loadRows(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return run, rows, nil
}

// List returns archived runs, newest first.
func (a *RunAdapter) List(ctx context.Context, filter repositories.RunFilter) ([]*entities.SegmentationRun, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 30
	}

	query, args, err := a.db.From(runsTable).
		Select("id", "snapshot_date", "customer_count", "summary", "emails_sent", "created_at").
		Order(goqu.C("created_at").Desc()).
		Limit(uint(limit)).
		Offset(uint(filter.Offset)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build run list query", err)
	}

	result, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list segmentation runs", err)
	}
	defer result.Close()

	var runs []*entities.SegmentationRun
	for result.Next() {
		run := &entities.SegmentationRun{}
		var summary []byte
		if err := result.Scan(&run.ID, &run.SnapshotDate, &run.CustomerCount, &summary, &run.EmailsSent, &run.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan segmentation run", err)
		}
		if err := json.Unmarshal(summary, &run.Summary); err != nil {
			return nil, apperrors.NewInternalError("failed to decode segment summary", err)
		}
		runs = append(runs, run)
	}
	return runs, result.Err()
}

func (a *RunAdapter) loadRows(ctx context.Context, runID string) ([]*entities.CustomerFeatures, error) {
	query, args, err := a.db.From(runCustomersTable).
		Select("customer_id", "name", "email", "last_purchase", "fav_category",
			"recency", "frequency", "monetary", "cluster", "segment").
		Where(goqu.C("run_id").Eq(runID)).
		Order(goqu.C("position").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build run rows query", err)
	}

	result, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load run rows", err)
	}
	defer result.Close()

	var rows []*entities.CustomerFeatures
	for result.Next() {
		row := &entities.CustomerFeatures{}
		var name sql.NullString
		var lastPurchase time.Time
		var monetary string
		if err := result.Scan(&row.CustomerID, &name, &row.Email, &lastPurchase, &row.FavCategory,
			&row.Recency, &row.Frequency, &monetary, &row.Cluster, &row.Segment); err != nil {
			return nil, apperrors.NewInternalError("failed to scan run row", err)
		}
		row.Name = name.String
		row.LastPurchase = lastPurchase
		row.LastPurchaseDaysAgo = row.Recency
		if row.Monetary, err = decimal.NewFromString(monetary); err != nil {
			return nil, apperrors.NewInternalError("failed to decode monetary value", err)
		}
		row.TotalSpent = row.Monetary
		rows = append(rows, row)
	}
	return rows, result.Err()
}
