package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/assets"
	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
)

// DepreciationRunner is the slice of the assets service the job needs.
type DepreciationRunner interface {
	RunDepreciation(ctx context.Context, period string, actorID int64) (assets.RunSummary, error)
}

// NewDepreciationHandler returns the Asynq handler for TaskDepreciationRun.
// An empty period in the payload defaults to the previous calendar month so
// the cron registration can enqueue the task without computing it.
func NewDepreciationHandler(logger *slog.Logger, runner DepreciationRunner, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload DepreciationRunPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Error("depreciation run: bad payload", slog.Any("error", err))
			return asynq.SkipRetry
		}
		period := payload.Period
		if period == "" {
			period = time.Now().UTC().AddDate(0, -1, 0).Format("2006-01")
		}

		tracker := metrics.Track("depreciation_run")
		summary, err := runner.RunDepreciation(ctx, period, payload.ActorID)
		if err = tracker.End(err); err != nil {
			logger.Error("depreciation run failed",
				slog.String("period", period), slog.Any("error", err))
			return err
		}
		logger.Info("depreciation run complete",
			slog.String("period", summary.Period),
			slog.Int("charged", summary.Charged),
			slog.Int("skipped", summary.Skipped),
			slog.String("total", summary.Total.StringFixed(2)))
		return nil
	}
}
