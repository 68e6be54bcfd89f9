package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/reports"
	"github.com/meridian-erp/meridian-erp/internal/assets"
	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
)

func testMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

type fakeRunner struct {
	period  string
	actorID int64
	err     error
}

func (f *fakeRunner) RunDepreciation(ctx context.Context, period string, actorID int64) (assets.RunSummary, error) {
	f.period = period
	f.actorID = actorID
	if f.err != nil {
		return assets.RunSummary{}, f.err
	}
	return assets.RunSummary{Period: period, Charged: 2, Total: decimal.NewFromInt(500)}, nil
}

func TestDepreciationHandlerRunsPayloadPeriod(t *testing.T) {
	runner := &fakeRunner{}
	handler := NewDepreciationHandler(slog.Default(), runner, testMetrics())

	task, err := NewDepreciationRunTask(DepreciationRunPayload{Period: "2026-07", ActorID: 9})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, "2026-07", runner.period)
	require.Equal(t, int64(9), runner.actorID)
}

func TestDepreciationHandlerDefaultsToPreviousMonth(t *testing.T) {
	runner := &fakeRunner{}
	handler := NewDepreciationHandler(slog.Default(), runner, testMetrics())

	task, err := NewDepreciationRunTask(DepreciationRunPayload{})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	want := time.Now().UTC().AddDate(0, -1, 0).Format("2006-01")
	require.Equal(t, want, runner.period)
}

func TestDepreciationHandlerSkipsRetryOnBadPayload(t *testing.T) {
	handler := NewDepreciationHandler(slog.Default(), &fakeRunner{}, testMetrics())

	err := handler(context.Background(), asynq.NewTask(TaskDepreciationRun, []byte("{broken")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestDepreciationHandlerPropagatesRunError(t *testing.T) {
	runErr := errors.New("pool gone")
	handler := NewDepreciationHandler(slog.Default(), &fakeRunner{err: runErr}, testMetrics())

	task, err := NewDepreciationRunTask(DepreciationRunPayload{Period: "2026-07"})
	require.NoError(t, err)
	require.ErrorIs(t, handler(context.Background(), task), runErr)
}

type fakeScanSource struct {
	unbalanced []EntryImbalance
	mismatched []EntryImbalance
	err        error
}

func (f *fakeScanSource) UnbalancedEntries(ctx context.Context) ([]EntryImbalance, error) {
	return f.unbalanced, f.err
}

func (f *fakeScanSource) HeaderLineMismatches(ctx context.Context) ([]EntryImbalance, error) {
	return f.mismatched, nil
}

type fakeDashboard struct {
	balanced bool
	err      error
}

func (f *fakeDashboard) Dashboard(ctx context.Context) (reports.Dashboard, error) {
	return reports.Dashboard{BalanceCheck: f.balanced}, f.err
}

func TestIntegrityScanCleanLedger(t *testing.T) {
	scanner := NewIntegrityScanner(slog.Default(), &fakeScanSource{}, &fakeDashboard{balanced: true}, testMetrics())

	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.True(t, report.Clean())
}

func TestIntegrityScanReportsViolations(t *testing.T) {
	source := &fakeScanSource{
		unbalanced: []EntryImbalance{{EntryID: 4, TotalDebit: decimal.NewFromInt(100), TotalCredit: decimal.NewFromInt(90)}},
		mismatched: []EntryImbalance{{EntryID: 7}},
	}
	scanner := NewIntegrityScanner(slog.Default(), source, &fakeDashboard{balanced: false}, testMetrics())

	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.False(t, report.Clean())
	require.Len(t, report.UnbalancedEntries, 1)
	require.Equal(t, int64(4), report.UnbalancedEntries[0].EntryID)
	require.Len(t, report.HeaderMismatches, 1)
	require.False(t, report.EquationHolds)
}

func TestIntegrityScanFailsOnReadError(t *testing.T) {
	readErr := errors.New("connection refused")
	scanner := NewIntegrityScanner(slog.Default(), &fakeScanSource{err: readErr}, &fakeDashboard{balanced: true}, testMetrics())

	_, err := scanner.Scan(context.Background())
	require.ErrorIs(t, err, readErr)
}

func TestIntegrityHandlerSkipsRetryOnBadPayload(t *testing.T) {
	scanner := NewIntegrityScanner(slog.Default(), &fakeScanSource{}, &fakeDashboard{balanced: true}, testMetrics())
	handler := NewLedgerIntegrityHandler(slog.Default(), scanner, testMetrics())

	err := handler(context.Background(), asynq.NewTask(TaskLedgerIntegrity, []byte("not-json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestClientEnqueuesTasks(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	info, err := client.EnqueueDepreciationRun(ctx, DepreciationRunPayload{Period: "2026-07", ActorID: 3})
	require.NoError(t, err)
	require.Equal(t, TaskDepreciationRun, info.Type)
	require.Equal(t, QueueDefault, info.Queue)
	require.Equal(t, asynq.TaskStatePending, info.State)

	var payload DepreciationRunPayload
	require.NoError(t, json.Unmarshal(info.Payload, &payload))
	require.Equal(t, "2026-07", payload.Period)

	info, err = client.EnqueueLedgerIntegrity(ctx, LedgerIntegrityPayload{RequestedBy: 3})
	require.NoError(t, err)
	require.Equal(t, TaskLedgerIntegrity, info.Type)
}
