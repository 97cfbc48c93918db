// Package jobs hosts the background job surface: task definitions, the Asynq
// worker, and the enqueue client.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAgingWarmup pre-populates the aging snapshot cache.
	TaskAgingWarmup = "aging:warmup"
)

// AgingWarmupPayload configures one warmup run.
type AgingWarmupPayload struct {
	// TopN controls how many customers the ranking warm touches. Zero keeps
	// the default of ten.
	TopN int `json:"top_n,omitempty"`
}

// NewAgingWarmupTask constructs the warmup task.
func NewAgingWarmupTask(payload AgingWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAgingWarmup, data), nil
}
