package scheduler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
)

const TaskPermitsIngest = "permits.ingest"

// IngestPayload selects a source, or "all", for one run.
type IngestPayload struct {
	Source string `json:"source"`
	DryRun bool   `json:"dryRun,omitempty"`
}

func NewIngestTask(payload IngestPayload, opts ...asynq.Option) (*asynq.Task, error) {
	if strings.TrimSpace(payload.Source) == "" {
		return nil, fmt.Errorf("ingest task requires a source")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPermitsIngest, data, opts...), nil
}

func ParseIngestPayload(task *asynq.Task) (IngestPayload, error) {
	var payload IngestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return IngestPayload{}, err
	}
	return payload, nil
}
