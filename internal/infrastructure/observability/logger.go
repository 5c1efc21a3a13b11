package observability

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// InitLogger configures the process-wide zerolog logger. Development gets a
// human-readable console writer for local pipeline runs; everything else
// emits JSON lines with caller information for log shipping.
func InitLogger(serviceName, env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	base := zerolog.New(os.Stdout)
	if env == "development" {
		base = base.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	builder := base.With().Timestamp().Str("service", serviceName)
	if env != "development" {
		builder = builder.Caller()
	}
	log.Logger = builder.Logger()
}

// LoggerFromContext returns the global logger enriched with the ids of the
// active span, so log lines from one segmentation run can be correlated
// with its trace. Without a recording span it falls back to the plain
// global logger.
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return GetLogger()
	}

	logger := log.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
	return &logger
}

// GetLogger returns the process-wide logger.
func GetLogger() *zerolog.Logger {
	return &log.Logger
}
