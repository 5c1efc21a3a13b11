package providers

import "context"

// MailSender attempts one synchronous delivery to a recipient. Transport or
// auth failures surface as errors; the caller decides whether a failure is
// fatal (for segmentation dispatch it never is).
type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}
