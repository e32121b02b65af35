package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"inboxinspire/internal/types"
)

// ErrRegistryClosed is returned by Register after Shutdown.
var ErrRegistryClosed = errors.New("job registry is shut down")

// JobKind separates one-shot occurrence jobs from per-rule jobs.
type JobKind string

const (
	JobKindOccurrence JobKind = "occ"
	JobKindRule       JobKind = "rule"
)

// JobID is the explicit identity of a live timer. Ownership is carried as a
// field, never parsed back out of the rendered string.
type JobID struct {
	OwnerID string
	Kind    JobKind
	Key     string
}

// OccurrenceJobID identifies the timer bound to one PendingSend.
func OccurrenceJobID(ownerID, pendingID string) JobID {
	return JobID{OwnerID: ownerID, Kind: JobKindOccurrence, Key: pendingID}
}

// RuleJobID identifies a timer bound to a schedule rule rather than a record.
func RuleJobID(ownerID, scheduleID string) JobID {
	return JobID{OwnerID: ownerID, Kind: JobKindRule, Key: scheduleID}
}

func (id JobID) String() string {
	return fmt.Sprintf("owner/%s/%s/%s", id.OwnerID, id.Kind, id.Key)
}

// MarshalText renders the id as its String form in JSON.
func (id JobID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// JobFunc is the callback bound to a job. The context is cancelled when the
// registry shuts down.
type JobFunc func(ctx context.Context)

// JobInfo describes a live registration.
type JobInfo struct {
	ID     JobID     `json:"id"`
	Name   string    `json:"name"`
	FireAt time.Time `json:"fire_at"`
}

// Timer is the cancellable handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d. time.AfterFunc in production.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type registration struct {
	version uint64
	fireAt  time.Time
	timer   Timer
}

// Registry maps job identities to live timers.
//
// Register replaces any existing timer for the same identity as one atomic
// step: a superseded callback that already started observes a newer version
// and returns without running. Callbacks never run with the lock held.
type Registry struct {
	mu      sync.Mutex
	jobs    map[JobID]*registration
	owners  map[string]map[JobID]struct{}
	version uint64
	closed  bool

	after  AfterFunc
	clock  types.Clock
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithAfterFunc replaces the timer primitive. Used by tests.
func WithAfterFunc(f AfterFunc) RegistryOption {
	return func(r *Registry) { r.after = f }
}

// WithClock replaces the clock used to compute timer delays.
func WithClock(c types.Clock) RegistryOption {
	return func(r *Registry) { r.clock = c }
}

// NewRegistry creates an empty registry. Shutdown must be called to release it.
func NewRegistry(logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		jobs:   make(map[JobID]*registration),
		owners: make(map[string]map[JobID]struct{}),
		after:  realAfterFunc,
		clock:  types.RealClock{},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds fn to fire at fireAt under id, replacing any live timer with
// the same identity. A fireAt in the past fires immediately.
func (r *Registry) Register(id JobID, fireAt time.Time, fn JobFunc) error {
	if id.OwnerID == "" || id.Key == "" {
		return fmt.Errorf("Register: incomplete job id %q", id)
	}
	if fn == nil {
		return fmt.Errorf("Register: nil callback for %s", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}

	if old, ok := r.jobs[id]; ok {
		old.timer.Stop()
	}

	r.version++
	reg := &registration{version: r.version, fireAt: fireAt}

	delay := fireAt.Sub(r.clock.Now())
	if delay < 0 {
		delay = 0
	}
	reg.timer = r.after(delay, func() { r.fire(id, reg.version, fn) })

	r.jobs[id] = reg
	set, ok := r.owners[id.OwnerID]
	if !ok {
		set = make(map[JobID]struct{})
		r.owners[id.OwnerID] = set
	}
	set[id] = struct{}{}

	r.logger.Debug("job registered", "job_id", id.String(), "fire_at", fireAt)
	return nil
}

// fire runs fn if the registration with the given version is still current.
func (r *Registry) fire(id JobID, version uint64, fn JobFunc) {
	r.mu.Lock()
	cur, ok := r.jobs[id]
	if r.closed || !ok || cur.version != version {
		r.mu.Unlock()
		return
	}
	r.removeLocked(id)
	r.wg.Add(1)
	ctx := r.ctx
	r.mu.Unlock()

	defer r.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("job panicked", "job_id", id.String(), "panic", rec)
		}
	}()
	fn(ctx)
}

// Unregister cancels the timer for id. It is a no-op when id is not live,
// including when its callback has already started.
func (r *Registry) Unregister(id JobID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.jobs[id]
	if !ok {
		return false
	}
	reg.timer.Stop()
	r.removeLocked(id)
	return true
}

// ListJobsFor returns the live jobs owned by ownerID ordered by fire time.
func (r *Registry) ListJobsFor(ownerID string) []JobInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.owners[ownerID]
	out := make([]JobInfo, 0, len(set))
	for id := range set {
		out = append(out, JobInfo{ID: id, Name: id.String(), FireAt: r.jobs[id].fireAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].FireAt.Before(out[j].FireAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// CancelOwner stops every live timer owned by ownerID and returns how many
// were cancelled. Jobs of other owners are never touched.
func (r *Registry) CancelOwner(ownerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.owners[ownerID]
	n := 0
	for id := range set {
		if reg, ok := r.jobs[id]; ok {
			reg.timer.Stop()
			delete(r.jobs, id)
			n++
		}
	}
	delete(r.owners, ownerID)
	return n
}

// Len returns the number of live timers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Shutdown stops all timers, cancels the context handed to running callbacks
// and waits for them to return or for ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	stopped := len(r.jobs)
	for id, reg := range r.jobs {
		reg.timer.Stop()
		delete(r.jobs, id)
	}
	clear(r.owners)
	r.mu.Unlock()

	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("job registry stopped", "timers_cancelled", stopped)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("Shutdown: waiting for running jobs: %w", ctx.Err())
	}
}

func (r *Registry) removeLocked(id JobID) {
	delete(r.jobs, id)
	if set, ok := r.owners[id.OwnerID]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(r.owners, id.OwnerID)
		}
	}
}
