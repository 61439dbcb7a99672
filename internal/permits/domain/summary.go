package domain

import "time"

// RowError describes one record that did not make it into the store.
type RowError struct {
	Row            int    `json:"row"`
	SourceRecordID string `json:"sourceRecordId,omitempty"`
	Message        string `json:"message"`
}

// BatchSummary is the externally visible outcome of one source run.
type BatchSummary struct {
	RunID      string     `json:"runId"`
	Source     Source     `json:"source"`
	DryRun     bool       `json:"dryRun"`
	Fetched    int        `json:"fetched"`
	Upserted   int        `json:"upserted"`
	Inserted   int        `json:"inserted"`
	Updated    int        `json:"updated"`
	Unchanged  int        `json:"unchanged"`
	Dropped    int        `json:"dropped"`
	Errors     int        `json:"errors"`
	LeadsMade  int        `json:"leadsCreated"`
	RowErrors  []RowError `json:"rowErrors,omitempty"`
	FetchError string     `json:"fetchError,omitempty"`
	Aborted    string     `json:"aborted,omitempty"`
	ArchiveKey string     `json:"archiveKey,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
}

const maxReportedRowErrors = 50

// AddResult folds one upsert result into the summary.
func (s *BatchSummary) AddResult(r UpsertResult) {
	s.Upserted++
	switch r.Action {
	case ActionInserted:
		s.Inserted++
	case ActionUpdated:
		s.Updated++
		if !r.Changed {
			s.Unchanged++
		}
	}
	if r.LeadID != nil {
		s.LeadsMade++
	}
}

// AddRowError counts a failed record. Only the first few are kept verbatim.
func (s *BatchSummary) AddRowError(row int, sourceRecordID string, err error) {
	s.Errors++
	if len(s.RowErrors) < maxReportedRowErrors {
		s.RowErrors = append(s.RowErrors, RowError{Row: row, SourceRecordID: sourceRecordID, Message: err.Error()})
	}
}

// Failed reports whether the whole batch was aborted.
func (s BatchSummary) Failed() bool {
	return s.FetchError != "" || s.Aborted != ""
}
