package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailiq/customer-segmentation/internal/domain/entities"
	apperrors "github.com/retailiq/customer-segmentation/pkg/errors"
)

// FeatureService collapses cleaned transactions into one RFM feature row
// per distinct customer.
type FeatureService struct{}

// NewFeatureService creates a feature aggregation service.
func NewFeatureService() *FeatureService {
	return &FeatureService{}
}

type categoryTally struct {
	description string
	quantity    int64
	revenue     decimal.Decimal
}

type customerAccumulator struct {
	lastPurchase time.Time
	invoices     map[string]struct{}
	monetary     decimal.Decimal
	name         string
	email        string

	categories    []*categoryTally
	categoryIndex map[string]*categoryTally
}

// Derive computes the feature row set and the snapshot date. The snapshot
// date is one day past the latest invoice date in the cleaned set; recency
// and last-purchase-days-ago both derive from it and are always equal.
//
// Returns EmptyInputError when no cleaned transactions are supplied.
func (s *FeatureService) Derive(transactions []*entities.Transaction) ([]*entities.CustomerFeatures, time.Time, error) {
	if len(transactions) == 0 {
		return nil, time.Time{}, apperrors.NewEmptyInputError("no transactions survived cleaning; nothing to aggregate")
	}

	maxDate := transactions[0].InvoiceDate
	for _, tx := range transactions[1:] {
		if tx.InvoiceDate.After(maxDate) {
			maxDate = tx.InvoiceDate
		}
	}
	snapshotDate := maxDate.Add(24 * time.Hour)

	accumulators := make(map[int64]*customerAccumulator)
	var customerIDs []int64

	for _, tx := range transactions {
		acc, ok := accumulators[tx.CustomerID]
		if !ok {
			acc = &customerAccumulator{
				invoices:      make(map[string]struct{}),
				monetary:      decimal.Zero,
				categoryIndex: make(map[string]*categoryTally),
			}
			accumulators[tx.CustomerID] = acc
			customerIDs = append(customerIDs, tx.CustomerID)
		}

		// Latest known (name, email) pair; >= keeps the last row in input
		// order among transactions sharing the exact latest timestamp.
		if !tx.InvoiceDate.Before(acc.lastPurchase) {
			acc.lastPurchase = tx.InvoiceDate
			acc.name = tx.Name
			acc.email = tx.Email
		}

		acc.invoices[tx.InvoiceNo] = struct{}{}
		acc.monetary = acc.monetary.Add(tx.LineTotal)

		tally, ok := acc.categoryIndex[tx.Description]
		if !ok {
			tally = &categoryTally{description: tx.Description, revenue: decimal.Zero}
			acc.categoryIndex[tx.Description] = tally
			acc.categories = append(acc.categories, tally)
		}
		tally.quantity += tx.Quantity
		tally.revenue = tally.revenue.Add(tx.LineTotal)
	}

	// Customer id ascending gives the aggregation a reproducible base order.
	sort.Slice(customerIDs, func(i, j int) bool { return customerIDs[i] < customerIDs[j] })

	rows := make([]*entities.CustomerFeatures, 0, len(customerIDs))
	for _, customerID := range customerIDs {
		acc := accumulators[customerID]
		if len(acc.categories) == 0 || acc.email == "" {
			// Cannot happen for a group built from >= 1 cleaned row.
			return nil, time.Time{}, apperrors.NewInternalError("aggregation produced an inconsistent customer group", nil)
		}

		recency := wholeDays(snapshotDate.Sub(acc.lastPurchase))

		rows = append(rows, &entities.CustomerFeatures{
			CustomerID:          customerID,
			Name:                acc.name,
			Email:               acc.email,
			LastPurchase:        acc.lastPurchase,
			FavCategory:         favoriteCategory(acc.categories),
			TotalSpent:          acc.monetary,
			LastPurchaseDaysAgo: recency,
			Recency:             recency,
			Frequency:           len(acc.invoices),
			Monetary:            acc.monetary,
		})
	}

	// Monetary descending is a presentation order the rest of the pipeline
	// relies on for output stability (dispatch caps walk it top-down).
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Monetary.GreaterThan(rows[j].Monetary)
	})

	return rows, snapshotDate, nil
}

// favoriteCategory picks the most purchased description by summed quantity,
// ties broken by summed revenue. Tallies arrive in first-encounter order and
// the sort is stable, so a full tie keeps the description seen first; the
// pick is reproducible across runs.
func favoriteCategory(tallies []*categoryTally) string {
	sorted := make([]*categoryTally, len(tallies))
	copy(sorted, tallies)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].quantity != sorted[j].quantity {
			return sorted[i].quantity > sorted[j].quantity
		}
		return sorted[i].revenue.Cmp(sorted[j].revenue) > 0
	})
	return sorted[0].description
}

func wholeDays(d time.Duration) int {
	return int(d.Hours() / 24)
}
