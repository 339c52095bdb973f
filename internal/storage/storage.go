package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pizzaparty/slices/internal/count"
	"github.com/pizzaparty/slices/internal/topping"
)

const (
	maxToppings = 32
	// MaxSlices bounds how many slices one participant may order in total.
	MaxSlices = 1 << 12
	// MaxParticipants bounds the size of one party.
	MaxParticipants = 256
)

var (
	// ErrInvalidToppings indicates the configured base toppings violate validation rules.
	ErrInvalidToppings = errors.New("toppings must contain between 1 and 32 distinct, non-blank names")
	// ErrInvalidCount is returned for a negative absolute slice count.
	ErrInvalidCount = fmt.Errorf("slice count must be between 0 and %d per participant", MaxSlices)
	// ErrInvalidParticipant is returned for a blank participant id.
	ErrInvalidParticipant = errors.New("participant id must not be blank")
	// ErrUnknownParticipant is returned when removing a participant that is not registered.
	ErrUnknownParticipant = errors.New("unknown participant")
	// ErrHostTaken is returned when a second participant tries to host.
	ErrHostTaken = errors.New("the order already has a host")
	// ErrInvalidRole is returned for an unknown role or a forbidden role change.
	ErrInvalidRole = errors.New("invalid participant role")
	// ErrPartyFull is returned when a new participant would exceed MaxParticipants.
	ErrPartyFull = fmt.Errorf("the order already has %d participants", MaxParticipants)
)

var defaultToppings = []topping.Base{"pepperoni", "mushroom", "cheese", "ham", "pineapple", "olive"}

// Participant is one person's contribution to the order.
type Participant struct {
	ID       string
	Role     Role
	Toppings count.Count
}

// Snapshot is the aggregate order at a given version.
type Snapshot struct {
	Order        count.Count
	Version      uint64
	Participants int
}

// Storage is the aggregation point for per-participant topping demand.
type Storage interface {
	Toppings() []topping.Base
	SetToppings(names []string) error
	Join(role Role) (Participant, error)
	Remove(id string) error
	Participants() []Participant
	Set(id string, t topping.Topping, value int) (int, error)
	Add(id string, t topping.Topping, delta int) (int, error)
	Aggregate() Snapshot
}

// MemoryStorage keeps participants in memory and guards access with a RWMutex.
// Counts are immutable, so readers never observe a partially applied update.
type MemoryStorage struct {
	mu           sync.RWMutex
	bases        []topping.Base
	participants map[string]Participant
	version      uint64
}

// NewMemoryStorage initialises storage with the default base toppings.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		bases:        cloneBases(defaultToppings),
		participants: make(map[string]Participant),
	}
}

// DefaultToppings returns a copy of the default base topping names.
func DefaultToppings() []string {
	out := make([]string, len(defaultToppings))
	for i, b := range defaultToppings {
		out[i] = string(b)
	}
	return out
}

// Toppings returns a copy of the configured base toppings in display order.
func (s *MemoryStorage) Toppings() []topping.Base {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneBases(s.bases)
}

// SetToppings validates, normalises, and stores the base toppings.
func (s *MemoryStorage) SetToppings(names []string) error {
	normalized, err := NormalizeToppings(names)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.bases = normalized
	s.version++
	s.mu.Unlock()

	return nil
}

// Join registers a new participant under a fresh id.
func (s *MemoryStorage) Join(role Role) (Participant, error) {
	next, err := Undetermined.Transition(role)
	if err != nil {
		return Participant{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if next == Host && s.hasHostLocked() {
		return Participant{}, ErrHostTaken
	}
	if len(s.participants) >= MaxParticipants {
		return Participant{}, ErrPartyFull
	}
	p := Participant{ID: uuid.NewString(), Role: next, Toppings: count.Empty()}
	s.participants[p.ID] = p
	s.version++
	return p, nil
}

// Remove drops a participant and their demand.
func (s *MemoryStorage) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
	}
	delete(s.participants, id)
	s.version++
	return nil
}

// Participants returns every participant ordered by id.
func (s *MemoryStorage) Participants() []Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedLocked()
}

// Set applies one update event: the participant's current slice count for t.
// The last write for a (participant, topping) pair wins. Unknown participants
// are registered as guests. A participant's total may not exceed MaxSlices.
func (s *MemoryStorage) Set(id string, t topping.Topping, value int) (int, error) {
	if value < 0 || value > MaxSlices {
		return 0, ErrInvalidCount
	}
	if !t.Valid() {
		return 0, topping.ErrEmptyTopping
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.participantLocked(id)
	if err != nil {
		return 0, err
	}
	if !withinLimit(p.Toppings, t, value) {
		return 0, ErrInvalidCount
	}
	p.Toppings = p.Toppings.Set(t, value)
	s.participants[p.ID] = p
	s.version++
	return value, nil
}

// Add changes the participant's count for t by delta, never going below zero,
// and returns the new value.
func (s *MemoryStorage) Add(id string, t topping.Topping, delta int) (int, error) {
	if delta > MaxSlices {
		return 0, ErrInvalidCount
	}
	if !t.Valid() {
		return 0, topping.ErrEmptyTopping
	}
	// The stored value never exceeds MaxSlices, so this still reaches zero.
	delta = max(delta, -MaxSlices)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.participantLocked(id)
	if err != nil {
		return 0, err
	}
	next, value := p.Toppings.Add(t, delta)
	if value < 0 {
		next, value = next.Set(t, 0), 0
	}
	if !withinLimit(p.Toppings, t, value) {
		return 0, ErrInvalidCount
	}
	p.Toppings = next
	s.participants[p.ID] = p
	s.version++
	return value, nil
}

// Aggregate joins every participant's count, seeded with the base toppings at
// zero and with zero composite entries removed.
func (s *MemoryStorage) Aggregate() Snapshot {
	s.mu.RLock()
	participants := s.sortedLocked()
	bases := cloneBases(s.bases)
	version := s.version
	s.mu.RUnlock()

	counts := make([]count.Count, 0, len(participants))
	for _, p := range participants {
		counts = append(counts, p.Toppings)
	}
	order := count.Seed(count.JoinAll(counts...), bases).FilterZeros()

	return Snapshot{Order: order, Version: version, Participants: len(participants)}
}

// Undecodable counts stored entries whose keys cannot be decoded.
func (s *MemoryStorage) Undecodable() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, p := range s.participants {
		n += len(p.Toppings.Undecodable())
	}
	return n
}

func (s *MemoryStorage) participantLocked(id string) (Participant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Participant{}, ErrInvalidParticipant
	}
	if p, ok := s.participants[id]; ok {
		return p, nil
	}
	if len(s.participants) >= MaxParticipants {
		return Participant{}, ErrPartyFull
	}
	role, _ := Undetermined.Transition(Guest)
	return Participant{ID: id, Role: role, Toppings: count.Empty()}, nil
}

// withinLimit reports whether c stays within MaxSlices once t is set to value.
func withinLimit(c count.Count, t topping.Topping, value int) bool {
	return c.Total()-max(c.Get(t), 0)+value <= MaxSlices
}

// validCounts checks a loaded count against the same bounds Set enforces.
func validCounts(c count.Count) bool {
	for _, v := range c.Raw() {
		if v < 0 || v > MaxSlices {
			return false
		}
	}
	return c.Total() <= MaxSlices
}

func (s *MemoryStorage) hasHostLocked() bool {
	for _, p := range s.participants {
		if p.Role == Host {
			return true
		}
	}
	return false
}

func (s *MemoryStorage) sortedLocked() []Participant {
	out := make([]Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneBases(src []topping.Base) []topping.Base {
	out := make([]topping.Base, len(src))
	copy(out, src)
	return out
}

// NormalizeToppings trims names and validates the result. Names must be
// distinct after trimming.
func NormalizeToppings(names []string) ([]topping.Base, error) {
	if len(names) == 0 {
		return nil, ErrInvalidToppings
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]topping.Base, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, ErrInvalidToppings
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q is listed twice", ErrInvalidToppings, name)
		}
		seen[name] = struct{}{}
		out = append(out, topping.Base(name))
		if len(out) > maxToppings {
			return nil, ErrInvalidToppings
		}
	}
	return out, nil
}
