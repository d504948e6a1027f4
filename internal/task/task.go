// Package task defines the wire-level description of one unit of work
// and the outcome of executing it.
package task

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Invocation is an immutable description of a single unit of work. A
// retried invocation keeps its TaskID across re-enqueues; only
// RetriesRemaining and ExecuteTime change.
type Invocation struct {
	TaskID           string         `json:"task_id"`
	HandlerName      string         `json:"handler_name"`
	Args             []byte         `json:"args,omitempty"`
	Kwargs           []byte         `json:"kwargs,omitempty"`
	ExecuteTime      *time.Time     `json:"execute_time,omitempty"`
	RetriesRemaining int            `json:"retries_remaining"`
	RetryDelay       time.Duration  `json:"retry_delay"`
	OnComplete       *Invocation    `json:"on_complete,omitempty"`
}

// New creates an Invocation ready for immediate execution.
func New(handlerName string, args, kwargs []byte, retries int, retryDelay time.Duration) *Invocation {
	return &Invocation{
		TaskID:           uuid.New().String(),
		HandlerName:      handlerName,
		Args:             args,
		Kwargs:           kwargs,
		RetriesRemaining: retries,
		RetryDelay:       retryDelay,
	}
}

// Due reports whether the invocation is eligible to run at now: either it
// has no ExecuteTime, or that time has already passed.
func (inv *Invocation) Due(now time.Time) bool {
	return inv.ExecuteTime == nil || !inv.ExecuteTime.After(now)
}

// ToJSON serializes the invocation.
func (inv *Invocation) ToJSON() ([]byte, error) {
	return json.Marshal(inv)
}

// FromJSON deserializes an invocation previously produced by ToJSON.
func FromJSON(data []byte) (*Invocation, error) {
	var inv Invocation
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Outcome is the terminal result of executing an Invocation: a non-empty
// Error marks a failure; otherwise Value holds the handler's return bytes,
// which may be empty.
type Outcome struct {
	Value []byte `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

func Success(value []byte) *Outcome {
	return &Outcome{Value: value}
}

func Failure(err error) *Outcome {
	return &Outcome{Error: err.Error()}
}

func (o *Outcome) IsError() bool {
	return o.Error != ""
}

func (o *Outcome) ToJSON() ([]byte, error) {
	return json.Marshal(o)
}

func OutcomeFromJSON(data []byte) (*Outcome, error) {
	var o Outcome
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
