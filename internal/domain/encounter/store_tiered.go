package encounter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/woundnote/woundnote/internal/platform/objstore"
)

const recordKeyPrefix = "encounters/"

// TieredStore layers a local Store over a remote ObjectStore. Writes go
// through to both tiers, local first, so a Get immediately after a Put is
// always served. Reads fill the local tier on a remote hit. Listing only
// consults the local tier; the remote tier is a durability backstop, not a
// query surface.
type TieredStore struct {
	local  Store
	remote objstore.ObjectStore
}

func NewTieredStore(local Store, remote objstore.ObjectStore) *TieredStore {
	return &TieredStore{local: local, remote: remote}
}

func recordKey(id string) string {
	return recordKeyPrefix + id + ".json"
}

func (s *TieredStore) Get(ctx context.Context, id string) (*Encounter, error) {
	e, err := s.local.Get(ctx, id)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	data, rerr := s.remote.Get(ctx, recordKey(id))
	if rerr != nil {
		if errors.Is(rerr, objstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("remote tier get %s: %w", id, rerr)
	}
	var remote Encounter
	if jerr := json.Unmarshal(data, &remote); jerr != nil {
		return nil, fmt.Errorf("remote tier decode %s: %w", id, jerr)
	}
	if perr := s.local.Put(ctx, &remote); perr != nil {
		return nil, fmt.Errorf("fill local tier %s: %w", id, perr)
	}
	return remote.Clone(), nil
}

func (s *TieredStore) Put(ctx context.Context, e *Encounter) error {
	if err := s.local.Put(ctx, e); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode encounter %s: %w", e.AppointmentID, err)
	}
	if err := s.remote.Put(ctx, recordKey(e.AppointmentID), data); err != nil {
		return fmt.Errorf("remote tier put %s: %w", e.AppointmentID, err)
	}
	return nil
}

func (s *TieredStore) Delete(ctx context.Context, id string) error {
	localErr := s.local.Delete(ctx, id)
	if localErr != nil && !errors.Is(localErr, ErrNotFound) {
		return localErr
	}
	remoteErr := s.remote.Delete(ctx, recordKey(id))
	if remoteErr != nil && !errors.Is(remoteErr, objstore.ErrNotFound) {
		return fmt.Errorf("remote tier delete %s: %w", id, remoteErr)
	}
	// missing in both tiers means the id never existed
	if errors.Is(localErr, ErrNotFound) && errors.Is(remoteErr, objstore.ErrNotFound) {
		return ErrNotFound
	}
	return nil
}

func (s *TieredStore) List(ctx context.Context) ([]*Encounter, error) {
	return s.local.List(ctx)
}
