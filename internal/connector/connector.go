// Package connector manages data-source connector configurations and the
// query-capture pipeline that feeds captured statements into detection.
package connector

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrDuplicateID is returned when creating a connector whose id exists.
	ErrDuplicateID = errors.New("connector with this id already exists")
	// ErrNotFound is returned when referencing an absent connector.
	ErrNotFound = errors.New("connector not found")
)

// Connector is one configured data source.
type Connector struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"` // e.g. "mongodb", "postgresql"
	ConnectionString string `json:"connection_string"`
}

// Validate validates the connector definition.
func (c *Connector) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("connector id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("connector name is required")
	}
	if c.Type == "" {
		return fmt.Errorf("connector type is required")
	}
	return nil
}

// Store persists connectors to a single JSON file with whole-file atomic
// replace, the same discipline as the policy store.
type Store struct {
	path string
	mu   sync.RWMutex
}

// NewStore creates a Store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// List returns all connectors in file order.
func (s *Store) List() ([]Connector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load()
}

// Get returns the connector with the given id.
func (s *Store) Get(id string) (Connector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	connectors, err := s.load()
	if err != nil {
		return Connector{}, err
	}
	for _, c := range connectors {
		if c.ID == id {
			return c, nil
		}
	}
	return Connector{}, ErrNotFound
}

// Create appends a new connector, rejecting duplicates.
func (s *Store) Create(c Connector) (Connector, error) {
	if err := c.Validate(); err != nil {
		return Connector{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	connectors, err := s.load()
	if err != nil {
		return Connector{}, err
	}
	for _, existing := range connectors {
		if existing.ID == c.ID {
			return Connector{}, ErrDuplicateID
		}
	}

	if err := s.save(append(connectors, c)); err != nil {
		return Connector{}, err
	}
	return c, nil
}

// Delete removes the connector with the given id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	connectors, err := s.load()
	if err != nil {
		return err
	}

	kept := connectors[:0:0]
	found := false
	for _, c := range connectors {
		if c.ID == id {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return ErrNotFound
	}
	return s.save(kept)
}

func (s *Store) load() ([]Connector, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read connector file: %w", err)
	}

	var connectors []Connector
	if err := json.Unmarshal(data, &connectors); err != nil {
		return nil, fmt.Errorf("failed to parse connector file: %w", err)
	}
	return connectors, nil
}

func (s *Store) save(connectors []Connector) error {
	if connectors == nil {
		connectors = []Connector{}
	}
	data, err := json.MarshalIndent(connectors, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal connectors: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create connector directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".connectors-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write connectors: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace connector file: %w", err)
	}
	return nil
}
