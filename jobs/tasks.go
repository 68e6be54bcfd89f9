package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDepreciationRun posts the monthly straight-line charges.
	TaskDepreciationRun = "assets:depreciation"
	// TaskLedgerIntegrity scans the ledger for balance violations.
	TaskLedgerIntegrity = "ledger:integrity"
)

// DepreciationRunPayload names the period to charge and the acting user.
type DepreciationRunPayload struct {
	Period  string `json:"period"`
	ActorID int64  `json:"actor_id"`
}

// NewDepreciationRunTask constructs an Asynq task for a depreciation run.
func NewDepreciationRunTask(payload DepreciationRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDepreciationRun, data, asynq.Queue(QueueDefault)), nil
}

// LedgerIntegrityPayload is empty today but kept versionable.
type LedgerIntegrityPayload struct {
	RequestedBy int64 `json:"requested_by,omitempty"`
}

// NewLedgerIntegrityTask constructs an Asynq task for the integrity scan.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data, asynq.Queue(QueueDefault)), nil
}
