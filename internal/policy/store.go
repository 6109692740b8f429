package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrDuplicateID is returned when creating a policy whose id exists.
	ErrDuplicateID = errors.New("policy with this id already exists")
	// ErrNotFound is returned when deleting or fetching an absent policy.
	ErrNotFound = errors.New("policy not found")
)

// Store persists the full policy set to a single JSON file. Every mutation
// is a read-modify-write of the whole set followed by an atomic whole-file
// replace, so a failed write leaves the previous file intact.
type Store struct {
	path string
	mu   sync.RWMutex
}

// NewStore creates a Store backed by the given file path. The file does not
// need to exist; an absent file is an empty policy set.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// List returns all policies in file order.
func (s *Store) List() ([]Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load()
}

// Get returns the policy with the given id.
func (s *Store) Get(id string) (Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policies, err := s.load()
	if err != nil {
		return Policy{}, err
	}
	for _, p := range policies {
		if p.ID == id {
			return p, nil
		}
	}
	return Policy{}, ErrNotFound
}

// ByDataType returns all policies applying to the given event type.
func (s *Store) ByDataType(dataType string) ([]Policy, error) {
	policies, err := s.List()
	if err != nil {
		return nil, err
	}

	matched := policies[:0:0]
	for _, p := range policies {
		if p.DataType == dataType {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// Create appends a new policy. Fails with ErrDuplicateID if the id exists;
// the persisted file is unchanged on any failure.
func (s *Store) Create(p Policy) (Policy, error) {
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	policies, err := s.load()
	if err != nil {
		return Policy{}, err
	}
	for _, existing := range policies {
		if existing.ID == p.ID {
			return Policy{}, ErrDuplicateID
		}
	}

	policies = append(policies, p)
	if err := s.save(policies); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Delete removes the policy with the given id. Fails with ErrNotFound if it
// is absent; the persisted file is unchanged on any failure.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	policies, err := s.load()
	if err != nil {
		return err
	}

	kept := policies[:0:0]
	found := false
	for _, p := range policies {
		if p.ID == id {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return ErrNotFound
	}

	return s.save(kept)
}

// load reads the full policy set. Callers must hold at least a read lock.
func (s *Store) load() ([]Policy, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var policies []Policy
	if err := json.Unmarshal(data, &policies); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	return policies, nil
}

// save atomically replaces the policy file. Callers must hold the write lock.
func (s *Store) save(policies []Policy) error {
	if policies == nil {
		policies = []Policy{}
	}
	data, err := json.MarshalIndent(policies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal policies: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create policy directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".policies-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write policies: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace policy file: %w", err)
	}
	return nil
}
