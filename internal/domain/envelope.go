package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope — JSON-представление job в теле сообщения.
//
//	{
//	  "jobUuid": "...",
//	  "jobName": "...",
//	  "attempts": 1,
//	  "createdAt": "2026-01-02T15:04:05Z",
//	  "jobParameters": {...},
//	  "executionPlannedAt": null
//	}
type Envelope struct {
	JobUUID            string         `json:"jobUuid"`
	JobName            string         `json:"jobName"`
	Attempts           int            `json:"attempts"`
	CreatedAt          time.Time      `json:"createdAt"`
	JobParameters      map[string]any `json:"jobParameters"`
	ExecutionPlannedAt *time.Time     `json:"executionPlannedAt"`
}

// EnvelopeOf строит конверт из job.
func EnvelopeOf(j *Job) Envelope {
	params := j.Parameters
	if params == nil {
		params = map[string]any{}
	}

	return Envelope{
		JobUUID:            j.UUID,
		JobName:            j.Name,
		Attempts:           j.Attempts,
		CreatedAt:          j.CreatedAt,
		JobParameters:      params,
		ExecutionPlannedAt: j.ExecutionPlannedAt,
	}
}

// DecodeEnvelope парсит тело сообщения.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &UnresolvableError{
			Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err),
		}
	}

	if env.JobName == "" {
		return nil, &UnresolvableError{
			Err: fmt.Errorf("%w: jobName is empty", ErrMalformedPayload),
		}
	}

	return &env, nil
}

// Job восстанавливает job из конверта.
func (e *Envelope) Job(def *JobDefinition) *Job {
	params := e.JobParameters
	if params == nil {
		params = make(map[string]any)
	}

	return &Job{
		UUID:               e.JobUUID,
		Name:               e.JobName,
		Attempts:           e.Attempts,
		CreatedAt:          e.CreatedAt,
		ExecutionPlannedAt: e.ExecutionPlannedAt,
		Parameters:         params,
		Definition:         def,
	}
}
