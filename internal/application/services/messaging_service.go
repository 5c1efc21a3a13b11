package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/retailiq/customer-segmentation/internal/domain/entities"
	"github.com/retailiq/customer-segmentation/internal/domain/providers"
	"github.com/retailiq/customer-segmentation/internal/infrastructure/observability"
)

// Fallbacks for blank recipient fields.
const (
	fallbackName     = "there"
	fallbackCategory = "your favorites"
)

// MessagingService renders per-segment message content and dispatches it
// through the mail sink.
type MessagingService struct {
	sender providers.MailSender
}

// NewMessagingService creates a messaging service. A nil sender disables
// dispatch; composition is always available.
func NewMessagingService(sender providers.MailSender) *MessagingService {
	return &MessagingService{sender: sender}
}

// Compose renders the subject/body pair for one scored feature row. Pure
// and deterministic: identical inputs always produce identical output, and
// it never fails. Unmatched segments (including "Unknown") get the at-risk
// treatment. The days value is always defined for a valid feature row since
// recency is computed for every row.
func (s *MessagingService) Compose(name, segment string, lastPurchaseDays int, favCategory string) entities.Message {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallbackName
	}
	fav := strings.TrimSpace(favCategory)
	if fav == "" {
		fav = fallbackCategory
	}

	switch segment {
	case entities.SegmentVIP:
		return entities.Message{
			Subject: "Exclusive early access just for you",
			Body: fmt.Sprintf(
				"Hey %s,\n\nAs one of our VIPs, enjoy early access to new arrivals in %s.\nThanks for being with us!",
				name, fav),
		}
	case entities.SegmentRegular:
		return entities.Message{
			Subject: fmt.Sprintf("A little thank-you: 15%% off %s", fav),
			Body: fmt.Sprintf(
				"Hi %s,\n\nYou've been loving our %s. Here's 15%% off your next order!\nSee what's new and recommended for you.",
				name, fav),
		}
	default: // At-Risk and Unknown
		return entities.Message{
			Subject: fmt.Sprintf("We miss you - %s waiting for you", fav),
			Body: fmt.Sprintf(
				"Hey %s,\n\nIt's been %d days since your last purchase. Come back for 25%% off %s!",
				name, lastPurchaseDays, fav),
		}
	}
}

// Dispatch walks scored rows in their established order (monetary
// descending) and sends at most limit messages; limit <= 0 means no cap.
//
// Rows with no email or an email missing an "@" are skipped without
// consuming the cap. A failed delivery counts as attempted, is logged, and
// never aborts the batch; there is no retry.
func (s *MessagingService) Dispatch(ctx context.Context, rows []*entities.CustomerFeatures, limit int) entities.DispatchReport {
	logger := observability.LoggerFromContext(ctx)
	report := entities.DispatchReport{}

	if s.sender == nil {
		logger.Warn().Msg("mail dispatch requested but no sender is configured")
		return report
	}

	for _, row := range rows {
		if limit > 0 && report.Attempted >= limit {
			break
		}

		email := strings.TrimSpace(row.Email)
		if email == "" || !strings.Contains(email, "@") {
			report.Skipped++
			continue
		}

		msg := s.Compose(row.Name, row.Segment, row.LastPurchaseDaysAgo, row.FavCategory)
		report.Attempted++

		if err := s.sender.Send(ctx, email, msg.Subject, msg.Body); err != nil {
			report.Failed++
			logger.Error().
				Err(err).
				Str("recipient", email).
				Str("segment", row.Segment).
				Msg("message delivery failed; continuing batch")
			continue
		}

		report.Sent++
	}

	return report
}
