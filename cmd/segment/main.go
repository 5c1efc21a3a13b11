// Command segment runs the RFM segmentation pipeline over a transactional
// CSV on disk, without the HTTP surface. Useful for batch scoring and for
// smoke-testing newly exported model artifacts.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/retailiq/customer-segmentation/internal/adapters/tabular"
	"github.com/retailiq/customer-segmentation/internal/application/services"
	"github.com/retailiq/customer-segmentation/internal/domain/providers"
	"github.com/retailiq/customer-segmentation/internal/infrastructure/mlmodel"
	"github.com/retailiq/customer-segmentation/internal/infrastructure/notifications"
	"github.com/retailiq/customer-segmentation/internal/infrastructure/observability"
	"github.com/retailiq/customer-segmentation/pkg/config"
)

func main() {
	var (
		inputPath  = flag.String("file", "", "path to the transactional CSV (required)")
		outputPath = flag.String("out", "customers_segmented.csv", "path for the scored output CSV")
		sendEmails = flag.Bool("send", false, "dispatch segment-triggered emails after scoring")
		limit      = flag.Int("limit", 0, "max emails to send, 0 for no cap")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger("segment-cli", cfg.Server.Env)
	logger := observability.GetLogger()

	if *inputPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		logger.Fatal().Err(err).Str("file", *inputPath).Msg("failed to read input file")
	}

	table, err := tabular.ReadTransactionsCSV(data)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse input file")
	}

	artifacts, err := mlmodel.Load(cfg.Models.Dir, cfg.Models.ScalerFile, cfg.Models.KMeansFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("model artifacts unavailable")
	}

	var mailSender providers.MailSender
	if *sendEmails {
		sender, err := notifications.NewSMTPSender(&cfg.SMTP)
		if err != nil {
			logger.Fatal().Err(err).Msg("cannot dispatch emails")
		}
		mailSender = sender
	}

	pipeline := services.NewSegmentationService(
		services.NewCleaningService(cfg.Models.CancelMarker),
		services.NewFeatureService(),
		services.NewScoringService(artifacts.Scaler, artifacts.KMeans),
		services.NewMessagingService(mailSender),
		nil,
	)

	result, err := pipeline.Run(context.Background(), table, services.SegmentationRequest{
		SendMessages: *sendEmails,
		Limit:        *limit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("segmentation failed")
	}

	if err := writeScoredCSV(*outputPath, result); err != nil {
		logger.Fatal().Err(err).Str("file", *outputPath).Msg("failed to write output")
	}

	event := logger.Info().
		Str("snapshot_date", result.SnapshotDate.Format("2006-01-02")).
		Int("customers", len(result.Rows)).
		Str("out", *outputPath)
	for segment, count := range result.Summary {
		event = event.Int(segment, count)
	}
	if result.Dispatch != nil {
		event = event.Int("emails_sent", result.Dispatch.Sent).Int("emails_failed", result.Dispatch.Failed)
	}
	event.Msg("segmentation finished")
}

func writeScoredCSV(path string, result *services.SegmentationResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"CustomerID", "Name", "Email", "Last_Purchase", "Fav_Category", "Total_Spent",
		"Last_Purchase_Days_Ago", "Recency", "Frequency", "Monetary", "Cluster", "Segment",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, row := range result.Rows {
		record := []string{
			strconv.FormatInt(row.CustomerID, 10),
			row.Name,
			row.Email,
			row.LastPurchase.Format("2006-01-02"),
			row.FavCategory,
			row.TotalSpent.String(),
			strconv.Itoa(row.LastPurchaseDaysAgo),
			strconv.Itoa(row.Recency),
			strconv.Itoa(row.Frequency),
			row.Monetary.String(),
			strconv.Itoa(row.Cluster),
			row.Segment,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
