package scrape

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrScrapeInFlight is returned when a scrape is already running for the
// same owner. Concurrent scrapes are rejected, not queued.
var ErrScrapeInFlight = errors.New("scrape already in flight for this owner")

// Status is the progress record for one scrape invocation. It is owned by
// the run and safe to snapshot from other goroutines.
type Status struct {
	mu sync.Mutex

	Owner      string
	Running    bool
	Progress   string
	Log        []string
	StartedAt  time.Time
	FinishedAt time.Time
	JobsFound  int
	Err        string
}

// Update records a progress message. Safe on a nil status so callers
// without a tracker can pass nil.
func (s *Status) Update(msg string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Progress = msg
	s.Log = append(s.Log, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg))
}

// Snapshot returns a copy without the lock for callers to inspect.
func (s *Status) Snapshot() Status {
	if s == nil {
		return Status{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Owner:      s.Owner,
		Running:    s.Running,
		Progress:   s.Progress,
		Log:        append([]string(nil), s.Log...),
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		JobsFound:  s.JobsFound,
		Err:        s.Err,
	}
}

func (s *Status) finish(jobsFound int, err error) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Running = false
	s.FinishedAt = time.Now()
	s.JobsFound = jobsFound
	if err != nil {
		s.Err = err.Error()
	}
}

// Tracker enforces at most one scrape in flight per logical owner and keeps
// the latest status per owner for polling.
type Tracker struct {
	mu     sync.Mutex
	latest map[string]*Status
}

func NewTracker() *Tracker {
	return &Tracker{latest: make(map[string]*Status)}
}

// Begin registers a new run for owner. It fails with ErrScrapeInFlight when
// a run for the same owner has not finished yet.
func (t *Tracker) Begin(owner string) (*Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok := t.latest[owner]; ok {
		current.mu.Lock()
		running := current.Running
		current.mu.Unlock()
		if running {
			return nil, ErrScrapeInFlight
		}
	}

	status := &Status{
		Owner:     owner,
		Running:   true,
		StartedAt: time.Now(),
	}
	t.latest[owner] = status
	return status, nil
}

// Finish marks the run complete. The status stays queryable until the next
// Begin for the same owner replaces it.
func (t *Tracker) Finish(status *Status, jobsFound int, err error) {
	status.finish(jobsFound, err)
}

// Get returns a snapshot of the latest status for owner.
func (t *Tracker) Get(owner string) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	status, ok := t.latest[owner]
	if !ok {
		return Status{}, false
	}
	return status.Snapshot(), true
}
