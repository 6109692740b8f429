package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Store writes report files to a directory and keeps an index of what it has
// written. On startup it re-reads the directory so restarts do not lose the
// listing.
type Store struct {
	dir string
	mu  sync.Mutex
	seq int
}

// NewStore creates the report directory if needed. The sequence counter
// resumes past any report already on disk, so a restart cannot reuse a name
// written in the same second before it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read report directory: %w", err)
	}

	s := &Store{dir: dir}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "dora_report_") || !strings.HasSuffix(name, ".txt") {
			continue
		}
		base := strings.TrimSuffix(name, ".txt")
		i := strings.LastIndex(base, "_")
		if i < 0 {
			continue
		}
		if n, err := strconv.Atoi(base[i+1:]); err == nil && n > s.seq {
			s.seq = n
		}
	}
	return s, nil
}

// Save writes one report and returns its metadata. Filenames carry a
// sequence suffix so two reports in the same second do not collide.
func (s *Store) Save(content string, now time.Time) (Report, error) {
	s.mu.Lock()
	s.seq++
	name := fmt.Sprintf("dora_report_%s_%04d.txt", now.Format("20060102150405"), s.seq)
	s.mu.Unlock()

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		return Report{}, fmt.Errorf("failed to write report: %w", err)
	}

	return Report{
		Name:      name,
		CreatedAt: now,
		Size:      int64(len(content)),
	}, nil
}

// List returns the stored reports, newest first.
func (s *Store) List() ([]Report, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read report directory: %w", err)
	}

	reports := make([]Report, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "dora_report_") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		reports = append(reports, Report{
			Name:      e.Name(),
			CreatedAt: info.ModTime(),
			Size:      info.Size(),
		})
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Name > reports[j].Name
	})
	return reports, nil
}

// Read returns one report's content by name. The name is constrained to the
// report directory; path traversal is rejected.
func (s *Store) Read(name string) (string, error) {
	if name != filepath.Base(name) || !strings.HasPrefix(name, "dora_report_") {
		return "", fmt.Errorf("invalid report name: %q", name)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to read report: %w", err)
	}
	return string(data), nil
}
