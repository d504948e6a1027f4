// Package registry maps handler names to the executable code producers and
// the consumer both refer to by name. Registration happens once at
// startup; after that the table is read-only.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Handler executes one task's business logic. args and kwargs are the
// invocation's raw JSON payloads; the returned bytes become the success
// outcome's Value.
type Handler func(ctx context.Context, args, kwargs []byte) ([]byte, error)

// PeriodicSpec describes a recurring schedule for a handler, parsed as a
// standard five-field cron expression.
type PeriodicSpec struct {
	CronExpr string
}

// Record is an immutable registration entry.
type Record struct {
	Name              string
	Handler           Handler
	DefaultRetries    int
	DefaultRetryDelay time.Duration
	Periodic          *PeriodicSpec
}

var ErrUnknownTask = errors.New("registry: unknown task")
var ErrAlreadyRegistered = errors.New("registry: handler already registered")

// Registry is a process-wide table of handler registrations. The zero
// value is usable; Default is provided for the common single-registry
// case.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// Default is the process-wide registry used by handlers that register via
// package-level Register/RegisterPeriodic.
var Default = New()

// Register adds h under name with the given default retry policy. It
// panics on a duplicate name, matching the import-time registration
// pattern producers use (a duplicate name is a programming error, not a
// runtime condition).
func (r *Registry) Register(name string, h Handler, retries int, retryDelay time.Duration) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.records == nil {
		r.records = make(map[string]*Record)
	}
	if _, exists := r.records[name]; exists {
		panic(ErrAlreadyRegistered.Error() + ": " + name)
	}

	rec := &Record{
		Name:              name,
		Handler:           h,
		DefaultRetries:    retries,
		DefaultRetryDelay: retryDelay,
	}
	r.records[name] = rec
	return rec
}

// RegisterPeriodic registers h and marks it as periodic under the given
// cron expression.
func (r *Registry) RegisterPeriodic(name string, cronExpr string, h Handler) *Record {
	rec := r.Register(name, h, 0, 0)
	rec.Periodic = &PeriodicSpec{CronExpr: cronExpr}
	return rec
}

// Resolve looks up a handler by name.
func (r *Registry) Resolve(name string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[name]
	if !ok {
		return nil, ErrUnknownTask
	}
	return rec, nil
}

// Periodic returns every registered periodic record.
func (r *Registry) Periodic() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Record
	for _, rec := range r.records {
		if rec.Periodic != nil {
			out = append(out, rec)
		}
	}
	return out
}

func Register(name string, h Handler, retries int, retryDelay time.Duration) *Record {
	return Default.Register(name, h, retries, retryDelay)
}

func RegisterPeriodic(name string, cronExpr string, h Handler) *Record {
	return Default.RegisterPeriodic(name, cronExpr, h)
}

func Resolve(name string) (*Record, error) {
	return Default.Resolve(name)
}
