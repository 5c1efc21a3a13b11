package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Behavioral segment names. Segments are a static lookup from the cluster
// id produced by the fitted k-means model, not learned here.
const (
	SegmentAtRisk  = "At-Risk Customers"
	SegmentRegular = "Regular Customers"
	SegmentVIP     = "VIP Customers"
	SegmentUnknown = "Unknown"
)

// SegmentForCluster maps a cluster id to its segment name. Ids outside the
// trained range map to SegmentUnknown.
func SegmentForCluster(cluster int) string {
	switch cluster {
	case 0:
		return SegmentAtRisk
	case 1:
		return SegmentRegular
	case 2:
		return SegmentVIP
	default:
		return SegmentUnknown
	}
}

// CustomerFeatures is one derived RFM feature row per distinct customer.
// Recency and LastPurchaseDaysAgo are always equal; Monetary and TotalSpent
// are the same quantity carried under two names.
type CustomerFeatures struct {
	CustomerID          int64
	Name                string
	Email               string
	LastPurchase        time.Time
	FavCategory         string
	TotalSpent          decimal.Decimal
	LastPurchaseDaysAgo int
	Recency             int
	Frequency           int
	Monetary            decimal.Decimal

	// Assigned by the scorer.
	Cluster int
	Segment string
}

// SegmentSummary counts feature rows per segment name.
type SegmentSummary map[string]int

// SegmentationRun is the archived outcome of one pipeline invocation. The
// json tags are the run archive API contract and follow the snake_case
// naming of the rest of the response surface.
type SegmentationRun struct {
	ID            string         `db:"id" json:"id"`
	SnapshotDate  time.Time      `db:"snapshot_date" json:"snapshot_date"`
	CustomerCount int            `db:"customer_count" json:"customer_count"`
	Summary       SegmentSummary `db:"-" json:"summary"`
	EmailsSent    int            `db:"emails_sent" json:"emails_sent"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}
