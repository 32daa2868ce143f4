package jobs

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/hlscene/internal/types"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

var ErrNotFound = errors.New("job not found")

// Params are the per-upload selection settings.
type Params struct {
	NumHighlights int     `json:"num_highlights"`
	MinDuration   float64 `json:"min_duration"`
	MaxDuration   float64 `json:"max_duration"`
}

type Job struct {
	ID           string          `json:"id"`
	Status       Status          `json:"status"`
	Progress     int             `json:"progress"`
	Params       Params          `json:"params"`
	OriginalName string          `json:"original_name"`
	InputPath    string          `json:"-"`
	Error        string          `json:"error,omitempty"`
	Metadata     *types.Metadata `json:"metadata,omitempty"`
	Files        []string        `json:"files,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (j Job) Finished() bool { return j.Status == StatusComplete || j.Status == StatusFailed }

// Store keeps job records. Implementations return copies; mutation goes
// through Update so concurrent readers never see a half-written job.
type Store interface {
	Create(name, inputPath string, p Params) (Job, error)
	Get(id string) (Job, error)
	Update(id string, fn func(*Job)) (Job, error)
	Delete(id string) error
	List() []Job
}

type entry struct {
	mu  sync.Mutex
	job Job
}

type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*entry
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*entry), now: time.Now}
}

func (s *MemoryStore) Create(name, inputPath string, p Params) (Job, error) {
	now := s.now().UTC()
	j := Job{
		ID:           uuid.New().String(),
		Status:       StatusQueued,
		Params:       p,
		OriginalName: name,
		InputPath:    inputPath,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.mu.Lock()
	s.jobs[j.ID] = &entry{job: j}
	s.mu.Unlock()
	return clone(j), nil
}

func (s *MemoryStore) Get(id string) (Job, error) {
	e, ok := s.lookup(id)
	if !ok {
		return Job{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return clone(e.job), nil
}

func (s *MemoryStore) Update(id string, fn func(*Job)) (Job, error) {
	e, ok := s.lookup(id)
	if !ok {
		return Job{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.job)
	e.job.ID = id
	e.job.UpdatedAt = s.now().UTC()
	return clone(e.job), nil
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}

// List returns all jobs, oldest first.
func (s *MemoryStore) List() []Job {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]Job, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, clone(e.job))
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.jobs[id]
	return e, ok
}

func clone(j Job) Job {
	j.Files = append([]string(nil), j.Files...)
	if j.Metadata != nil {
		md := *j.Metadata
		md.Highlights = append([]types.HighlightMetadata(nil), md.Highlights...)
		j.Metadata = &md
	}
	return j
}

// OlderThan returns every job created before cutoff, whatever its status.
func OlderThan(s Store, cutoff time.Time) []Job {
	var out []Job
	for _, j := range s.List() {
		if j.CreatedAt.Before(cutoff) {
			out = append(out, j)
		}
	}
	return out
}
