package encounter

import "context"

// Store is the persistence port for encounter aggregates. The whole
// aggregate, history included, is read and written as a unit; there is no
// partial update. Implementations must return ErrNotFound for unknown ids
// and must not retain references to the aggregates they are handed.
type Store interface {
	Get(ctx context.Context, id string) (*Encounter, error)
	Put(ctx context.Context, e *Encounter) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Encounter, error)
}
