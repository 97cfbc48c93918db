package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerbridge/recvdash/internal/dashboard"
	jobmetrics "github.com/ledgerbridge/recvdash/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const defaultWarmupTopN = 10

// AgingWarmupJob pre-populates the aging snapshot cache so the first dashboard
// mount after a cache bump does not pay the ledger round trip.
type AgingWarmupJob struct {
	Dashboard *dashboard.Service
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewAgingWarmupJob wires dependencies for the warmup handler.
func NewAgingWarmupJob(svc *dashboard.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *AgingWarmupJob {
	return &AgingWarmupJob{
		Dashboard: svc,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes aging warmup tasks.
func (j *AgingWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Dashboard == nil {
		return errors.New("aging warmup: handler not configured")
	}
	var payload AgingWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.TopN <= 0 {
		payload.TopN = defaultWarmupTopN
	}

	tracker := j.metrics().Track(TaskAgingWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting aging warmup", slog.Int("top_n", payload.TopN))

	start := j.now()
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	snapshot, err := j.Dashboard.GetSnapshot(runCtx)
	if err != nil {
		resultErr = err
		logger.Error("warm aging snapshot", slog.Any("error", err))
		return resultErr
	}
	if _, err := j.Dashboard.TopCustomers(runCtx, payload.TopN); err != nil {
		resultErr = err
		logger.Error("warm top customers", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed aging warmup",
		slog.Int("customers", len(snapshot.Rows)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *AgingWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAgingWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAgingWarmup))
}

func (j *AgingWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AgingWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
