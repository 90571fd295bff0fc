package session

import (
	"sync"
	"time"

	"trade-bot-console-go/internal/models"
)

// LoadState tracks a refreshable entity's last round trip.
type LoadState int

const (
	Idle LoadState = iota
	Pending
	Failed
)

func (s LoadState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

func (s LoadState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Entity is a remote-authoritative value as last published locally.
// Value keeps the previous result when a refresh fails. A read that completes
// after a later-issued read has been published is discarded.
type Entity[T any] struct {
	Value     T         `json:"value"`
	Loaded    bool      `json:"loaded"`
	Load      LoadState `json:"load"`
	Err       string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`

	issued  uint64
	applied uint64
}

// begin marks a read in flight and returns its ticket.
func (e *Entity[T]) begin() uint64 {
	e.issued++
	e.Load = Pending
	return e.issued
}

// succeed publishes v unless a later read has already been published.
func (e *Entity[T]) succeed(ticket uint64, v T, at time.Time) bool {
	if ticket < e.applied {
		return false
	}
	e.applied = ticket
	e.Value = v
	e.Loaded = true
	e.Err = ""
	e.UpdatedAt = at
	if ticket == e.issued {
		e.Load = Idle
	}
	return true
}

func (e *Entity[T]) fail(ticket uint64, err error) {
	if ticket < e.applied {
		return
	}
	e.applied = ticket
	e.Err = err.Error()
	if ticket == e.issued {
		e.Load = Failed
	}
}

// ConfigDraft is the locally edited, not yet confirmed configuration.
type ConfigDraft struct {
	Strategy  string `json:"strategy"`
	Threshold string `json:"threshold"`
}

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	Version      uint64                    `json:"version"`
	Ready        bool                      `json:"ready"`
	Principal    string                    `json:"principal,omitempty"`
	Status       Entity[models.BotStatus]  `json:"status"`
	Logs         Entity[[]models.TradeLog] `json:"logs"`
	Balance      Entity[models.Balance]    `json:"balance"`
	Config       Entity[models.BotConfig]  `json:"config"`
	Draft        ConfigDraft               `json:"draft"`
	LastDecision models.Decision           `json:"last_decision,omitempty"`
}

// State is the session state owned by the Controller and shared with its components.
// Every mutation publishes a fresh Snapshot to subscribers.
type State struct {
	mu     sync.RWMutex
	snap   Snapshot
	subs   map[int]chan Snapshot
	nextID int
	now    func() time.Time
}

// NewState creates an empty state.
func NewState() *State {
	return &State{
		subs: make(map[int]chan Snapshot),
		now:  time.Now,
	}
}

// Snapshot returns a copy that is safe to read concurrently.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *State) copyLocked() Snapshot {
	c := s.snap
	if s.snap.Logs.Value != nil {
		c.Logs.Value = make([]models.TradeLog, len(s.snap.Logs.Value))
		copy(c.Logs.Value, s.snap.Logs.Value)
	}
	return c
}

// Subscribe returns a channel that always holds the latest published snapshot.
// Intermediate snapshots are dropped for slow readers.
func (s *State) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Snapshot, 1)
	s.subs[id] = ch
	ch <- s.copyLocked()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *State) update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.snap)
	s.snap.Version++

	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.copyLocked()
	}
}
