package catalog

import "sync"

// Change is a committed transition.
type Change struct {
	Prev    State
	Next    State
	Command Command
}

// Listener observes committed changes. Listeners run on the dispatching
// goroutine, in commit order, and must not dispatch synchronously.
type Listener func(Change)

// Store owns the catalog state and serializes transitions.
type Store struct {
	mu    sync.Mutex
	state State

	// notify keeps listener calls in commit order.
	notify    sync.Mutex
	lmu       sync.Mutex
	listeners []subscription
	nextID    int
}

type subscription struct {
	id int
	fn Listener
}

// NewStore creates a Store starting at initial.
func NewStore(initial State) *Store {
	if initial.Cart == nil {
		initial.Cart = map[string]int{}
	}
	if initial.PrefetchedPages == nil {
		initial.PrefetchedPages = map[int]struct{}{}
	}
	return &Store{state: initial}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies cmd and notifies listeners. It returns the new state.
func (s *Store) Dispatch(cmd Command) State {
	s.mu.Lock()
	prev := s.state
	next := Reduce(prev, cmd)
	s.state = next
	s.notify.Lock()
	s.mu.Unlock()
	defer s.notify.Unlock()

	s.lmu.Lock()
	listeners := make([]Listener, len(s.listeners))
	for i, sub := range s.listeners {
		listeners[i] = sub.fn
	}
	s.lmu.Unlock()

	change := Change{Prev: prev, Next: next, Command: cmd}
	for _, fn := range listeners {
		fn(change)
	}
	return next
}

// Subscribe registers fn and returns a function removing it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.lmu.Lock()
	defer s.lmu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			defer s.lmu.Unlock()
			for i, sub := range s.listeners {
				if sub.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}
