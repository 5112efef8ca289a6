// Package conversation owns cross-invocation state: UUID-keyed threads with
// turn history, TTL expiry, and per-thread workflow state.
package conversation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one conversation entry.
type Turn struct {
	// Role is RoleUser or RoleAssistant.
	Role string `json:"role"`

	// Content is the turn text.
	Content string `json:"content"`

	// Tool is the tool that produced or consumed the turn.
	Tool string `json:"tool,omitempty"`

	// Model is the model that served an assistant turn.
	Model string `json:"model,omitempty"`

	// Files are the paths referenced in this turn, in request order.
	Files []string `json:"files,omitempty"`

	// Images are the image references of this turn, in request order.
	Images []string `json:"images,omitempty"`

	// Timestamp is when the turn was appended.
	Timestamp time.Time `json:"timestamp"`

	// Tokens is the per-turn token estimate, when accounted.
	Tokens int `json:"tokens,omitempty"`
}

// Thread is a conversation with ordered turns. Values returned by the store
// are deep copies; mutations go through Store methods.
type Thread struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`

	// Tool and Model record the creating tool and its model.
	Tool  string `json:"tool"`
	Model string `json:"model"`

	Turns []Turn `json:"turns"`

	// TokenEstimate accumulates per-turn token estimates.
	TokenEstimate int `json:"token_estimate"`
}

// LastAssistantModel returns the model of the newest assistant turn, or the
// thread's initial model.
func (t *Thread) LastAssistantModel() string {
	for i := len(t.Turns) - 1; i >= 0; i-- {
		if t.Turns[i].Role == RoleAssistant && t.Turns[i].Model != "" {
			return t.Turns[i].Model
		}
	}
	return t.Model
}

// FileSet returns every file ever referenced, keyed for dedup.
func (t *Thread) FileSet() map[string]bool {
	set := map[string]bool{}
	for _, turn := range t.Turns {
		for _, f := range turn.Files {
			set[f] = true
		}
	}
	return set
}

// Store errors.
var (
	ErrThreadUnknown    = errors.New("thread unknown")
	ErrThreadExpired    = errors.New("thread expired")
	ErrThreadCapReached = errors.New("thread turn cap reached")
)

// Defaults for thread limits.
const (
	DefaultMaxTurns = 50
	DefaultTTL      = 3 * time.Hour
)

type entry struct {
	mu       sync.Mutex
	thread   Thread
	workflow *WorkflowState
}

// Store is the in-process thread registry. Reads return copies; per-thread
// mutations serialize on the entry lock so concurrent callers observe either
// the pre- or post-mutation state.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a store with the given limits. Zero values select the
// defaults.
func NewStore(maxTurns int, ttl time.Duration) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		entries:  map[string]*entry{},
		maxTurns: maxTurns,
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetNowFunc sets a custom clock for tests.
func (s *Store) SetNowFunc(fn func() time.Time) { s.now = fn }

// MaxTurns returns the configured turn cap.
func (s *Store) MaxTurns() int { return s.maxTurns }

// Create starts a new thread with the first user turn and returns its id.
func (s *Store) Create(tool, model string, first Turn) string {
	id := uuid.NewString()
	now := s.now()
	first.Role = RoleUser
	if first.Timestamp.IsZero() {
		first.Timestamp = now
	}
	e := &entry{thread: Thread{
		ID:            id,
		CreatedAt:     now,
		LastAccessed:  now,
		Tool:          tool,
		Model:         model,
		Turns:         []Turn{first},
		TokenEstimate: first.Tokens,
	}}
	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
	return id
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrThreadUnknown, id)
	}
	return e, nil
}

// Get returns a deep copy of the thread, refreshing its last access. Expired
// threads are reported as such; removal belongs to Sweep alone, so the store
// lock is never taken while an entry lock is held.
func (s *Store) Get(id string) (*Thread, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	now := s.now()
	if now.Sub(e.thread.LastAccessed) > s.ttl {
		return nil, fmt.Errorf("%w: %s", ErrThreadExpired, id)
	}
	e.thread.LastAccessed = now
	return cloneThread(&e.thread), nil
}

// Append adds a turn, returning its zero-based index. Fails with
// ErrThreadCapReached once the thread holds MaxTurns turns.
func (s *Store) Append(id string, turn Turn) (int, error) {
	e, err := s.lookup(id)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.thread.Turns) >= s.maxTurns {
		return 0, fmt.Errorf("%w: %s", ErrThreadCapReached, id)
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	e.thread.Turns = append(e.thread.Turns, turn)
	e.thread.TokenEstimate += turn.Tokens
	e.thread.LastAccessed = s.now()
	return len(e.thread.Turns) - 1, nil
}

// RemainingTurns reports how many more turns the thread accepts.
func (s *Store) RemainingTurns(id string) int {
	e, err := s.lookup(id)
	if err != nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return s.maxTurns - len(e.thread.Turns)
}

// UpdateWorkflow runs fn against the thread's workflow state under the
// per-thread lock, creating the state on first use. Concurrent step
// submissions serialize here.
func (s *Store) UpdateWorkflow(id string, fn func(st *WorkflowState) error) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.workflow == nil {
		e.workflow = NewWorkflowState()
	}
	return fn(e.workflow)
}

// Workflow returns a copy of the thread's workflow state, or nil when none
// exists.
func (s *Store) Workflow(id string) *WorkflowState {
	e, err := s.lookup(id)
	if err != nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.workflow == nil {
		return nil
	}
	return e.workflow.clone()
}

// Delete removes a thread outright, regardless of expiry.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Sweep removes threads idle past the TTL and returns how many were dropped.
// Safe to call from any scheduler tick.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		e.mu.Lock()
		idle := now.Sub(e.thread.LastAccessed)
		e.mu.Unlock()
		if idle > s.ttl {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live threads.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func cloneThread(t *Thread) *Thread {
	clone := *t
	clone.Turns = make([]Turn, len(t.Turns))
	for i, turn := range t.Turns {
		ct := turn
		ct.Files = append([]string(nil), turn.Files...)
		ct.Images = append([]string(nil), turn.Images...)
		clone.Turns[i] = ct
	}
	return &clone
}
