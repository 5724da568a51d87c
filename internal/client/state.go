package client

import (
	"sync"

	"github.com/levitt-app/levitt/internal/model"
	"github.com/levitt-app/levitt/internal/verse"
)

// Status is the coarse auth state the navigation gate reacts to.
type Status int

const (
	Bootstrapping Status = iota
	Authenticated
	Unauthenticated
)

func (s Status) String() string {
	switch s {
	case Bootstrapping:
		return "bootstrapping"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// State is a snapshot of the client session. Account and DailyVerse are
// set only while Authenticated.
type State struct {
	Status     Status
	Token      string
	Account    *model.PublicAccount
	DailyVerse *verse.Verse
}

// Loading is true until the first bootstrap settles.
func (s State) Loading() bool { return s.Status == Bootstrapping }

// StateStore is an observable holder of the current State. Listeners are
// called one at a time, outside every lock, in commit order.
type StateStore struct {
	mu        sync.Mutex
	state     State
	pending   []State
	flushing  bool
	nextID    int
	listeners map[int]func(State)
	order     []int
}

// NewStateStore starts in Bootstrapping.
func NewStateStore() *StateStore {
	return &StateStore{
		state:     State{Status: Bootstrapping},
		listeners: make(map[int]func(State)),
	}
}

// Get returns a copy of the current state.
func (s *StateStore) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every later commit and returns a func that
// removes it.
func (s *StateStore) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

// commit replaces the current state and queues it for delivery. Callers
// must call flush once they have released their own locks.
func (s *StateStore) commit(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	s.pending = append(s.pending, st)
}

// flush delivers queued states. Only one goroutine dispatches at a time;
// states committed meanwhile are picked up by the active dispatcher.
func (s *StateStore) flush() {
	s.mu.Lock()
	if s.flushing {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	for len(s.pending) > 0 {
		st := s.pending[0]
		s.pending = s.pending[1:]
		fns := make([]func(State), 0, len(s.order))
		for _, id := range s.order {
			fns = append(fns, s.listeners[id])
		}
		s.mu.Unlock()
		for _, fn := range fns {
			fn(st)
		}
		s.mu.Lock()
	}
	s.flushing = false
	s.mu.Unlock()
}
