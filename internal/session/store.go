package session

import (
	"errors"
	"sync"
	"time"

	"rentvoice/agent/internal/escalate"
	"rentvoice/agent/internal/flow"
	"rentvoice/agent/internal/types"
)

var ErrNegotiationExists = errors.New("negotiation already exists")

// Negotiation is the aggregate for one voice upsell conversation. Booking,
// Selected and Offers are fixed at creation; the rest is mutated only
// through Store methods.
type Negotiation struct {
	ID       string                  `json:"id"`
	Booking  types.BookingRequest    `json:"booking"`
	Selected types.VehicleOffer      `json:"selected_car"`
	Offers   types.NegotiationOffers `json:"offers"`

	State  flow.State `json:"state"`
	Script string     `json:"script"`

	VideoReady    bool `json:"video_ready"`
	Connected     bool `json:"connected"`
	UnclearStreak int  `json:"unclear_streak"`

	Escalation *escalate.Coordinator `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

type Store struct {
	mu           sync.RWMutex
	negotiations map[string]*Negotiation
	events       map[string][]types.Event
	turnActive   map[string]bool
}

func New() *Store {
	return &Store{
		negotiations: make(map[string]*Negotiation),
		events:       make(map[string][]types.Event),
		turnActive:   make(map[string]bool),
	}
}

func (s *Store) Create(n *Negotiation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.negotiations[n.ID]; ok {
		return ErrNegotiationExists
	}
	s.negotiations[n.ID] = n
	s.events[n.ID] = []types.Event{}
	return nil
}

func (s *Store) Get(id string) *Negotiation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.negotiations[id]
}

func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.negotiations[id]
	return ok
}

// Snapshot returns a copy safe to serialize without holding the lock.
func (s *Store) Snapshot(id string) (Negotiation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.negotiations[id]
	if !ok {
		return Negotiation{}, false
	}
	return *n, true
}

// Commit records the outcome of one turn: the new state and the line the
// agent speaks next.
func (s *Store) Commit(id string, state flow.State, script string) {
	s.mu.Lock()
	if n, ok := s.negotiations[id]; ok {
		n.State = state
		n.Script = script
	}
	s.mu.Unlock()
}

func (s *Store) SetVideoReady(id string, ready bool) {
	s.mu.Lock()
	if n, ok := s.negotiations[id]; ok {
		n.VideoReady = ready
	}
	s.mu.Unlock()
}

func (s *Store) SetConnected(id string, connected bool) {
	s.mu.Lock()
	if n, ok := s.negotiations[id]; ok {
		n.Connected = connected
	}
	s.mu.Unlock()
}

// BumpUnclear increments the consecutive-unclear counter and returns the new
// value. ResetUnclear clears it after any decisive reply.
func (s *Store) BumpUnclear(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.negotiations[id]
	if !ok {
		return 0
	}
	n.UnclearStreak++
	return n.UnclearStreak
}

func (s *Store) ResetUnclear(id string) {
	s.mu.Lock()
	if n, ok := s.negotiations[id]; ok {
		n.UnclearStreak = 0
	}
	s.mu.Unlock()
}

// BeginTurn claims the single turn slot for a negotiation. It returns false
// when another turn is already in flight.
func (s *Store) BeginTurn(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turnActive[id] {
		return false
	}
	s.turnActive[id] = true
	return true
}

func (s *Store) EndTurn(id string) {
	s.mu.Lock()
	delete(s.turnActive, id)
	s.mu.Unlock()
}

func (s *Store) AppendEvent(id, typ string, payload map[string]any) {
	evt := types.Event{Type: typ, Ts: time.Now().UTC(), Payload: payload}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[id] = append(s.events[id], evt)
	// Cap total events per negotiation to avoid unbounded growth
	const maxEvents = 200
	if l := len(s.events[id]); l > maxEvents {
		// Keep space for a single truncation warning so the total stays at maxEvents
		keep := maxEvents - 1
		dropped := l - keep
		s.events[id] = append([]types.Event(nil), s.events[id][l-keep:]...)
		warn := types.Event{Type: "events_truncated", Ts: time.Now().UTC(), Payload: map[string]any{"negotiation_id": id, "dropped": dropped, "kept": keep}}
		s.events[id] = append(s.events[id], warn)
	}
}

func (s *Store) ListEvents(id string) []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.events[id]
	out := make([]types.Event, len(src))
	copy(out, src)
	return out
}

func (s *Store) ListIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.negotiations))
	for id := range s.negotiations {
		out = append(out, id)
	}
	return out
}
