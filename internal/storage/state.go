package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pizzaparty/slices/internal/count"
)

type stateFile struct {
	Participants map[string]participantState `yaml:"participants"`
}

type participantState struct {
	Role     string      `yaml:"role"`
	Toppings count.Count `yaml:"toppings"`
}

// Save writes every participant as YAML.
func (s *MemoryStorage) Save(w io.Writer) error {
	s.mu.RLock()
	state := stateFile{Participants: make(map[string]participantState, len(s.participants))}
	for id, p := range s.participants {
		state.Participants[id] = participantState{Role: p.Role.String(), Toppings: p.Toppings}
	}
	s.mu.RUnlock()

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(state); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return enc.Close()
}

// Load replaces every participant with the YAML state read from r.
// Entries whose keys do not decode are kept but take no part in the aggregate.
func (s *MemoryStorage) Load(r io.Reader) error {
	var state stateFile
	if err := yaml.NewDecoder(r).Decode(&state); err != nil && err != io.EOF {
		return fmt.Errorf("decode state: %w", err)
	}

	if len(state.Participants) > MaxParticipants {
		return ErrPartyFull
	}

	participants := make(map[string]Participant, len(state.Participants))
	hosts := 0
	for id, ps := range state.Participants {
		if id == "" {
			return ErrInvalidParticipant
		}
		role, err := ParseRole(ps.Role)
		if err != nil {
			return fmt.Errorf("participant %s: %w", id, err)
		}
		if !validCounts(ps.Toppings) {
			return fmt.Errorf("participant %s: %w", id, ErrInvalidCount)
		}
		if role == Host {
			hosts++
		}
		participants[id] = Participant{ID: id, Role: role, Toppings: ps.Toppings}
	}
	if hosts > 1 {
		return ErrHostTaken
	}

	s.mu.Lock()
	s.participants = participants
	s.version++
	s.mu.Unlock()
	return nil
}

// SaveFile writes the state atomically by renaming a temporary file.
func (s *MemoryStorage) SaveFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.Save(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// LoadFile loads state from path. A missing file leaves storage untouched.
func (s *MemoryStorage) LoadFile(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer f.Close()

	return s.Load(f)
}
