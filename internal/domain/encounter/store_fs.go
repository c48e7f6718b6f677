package encounter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FSStore keeps one JSON document per encounter under a directory. Writes go
// through a temp file and rename so readers never observe a half-written
// record.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid encounter id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

func (s *FSStore) Get(_ context.Context, id string) (*Encounter, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read encounter %s: %w", id, err)
	}
	var e Encounter
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode encounter %s: %w", id, err)
	}
	return &e, nil
}

func (s *FSStore) Put(_ context.Context, e *Encounter) error {
	p, err := s.path(e.AppointmentID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("encode encounter %s: %w", e.AppointmentID, err)
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write encounter %s: %w", e.AppointmentID, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write encounter %s: %w", e.AppointmentID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write encounter %s: %w", e.AppointmentID, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write encounter %s: %w", e.AppointmentID, err)
	}
	return nil
}

func (s *FSStore) Delete(_ context.Context, id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete encounter %s: %w", id, err)
	}
	return nil
}

func (s *FSStore) List(ctx context.Context) ([]*Encounter, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list encounters: %w", err)
	}
	var out []*Encounter
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		e, err := s.Get(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			// a record deleted between ReadDir and Get is not an error
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].AppointmentID < out[j].AppointmentID
	})
	return out, nil
}
