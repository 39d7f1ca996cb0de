package tags

import "errors"

// Store is the persistence surface for tag assignments. Implementations must
// return ErrUnknownTag for absent keys.
type Store interface {
	GetString(key string) (string, error)
	PutString(key, value string) error
	DeleteKey(key string) error
}

// Registry reads and writes tag records through a Store.
type Registry struct {
	store Store
}

// NewRegistry wires a Registry to its backing store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Lookup returns the record assigned to tagID.
func (r *Registry) Lookup(tagID string) (Record, error) {
	raw, err := r.store.GetString(tagID)
	if err != nil {
		return Record{}, err
	}
	return ParseRecord(raw)
}

// Assign writes or replaces the record for tagID.
func (r *Registry) Assign(tagID string, rec Record) error {
	return r.store.PutString(tagID, rec.String())
}

// Remove deletes the assignment for tagID. Removing an unassigned tag is
// not an error.
func (r *Registry) Remove(tagID string) error {
	err := r.store.DeleteKey(tagID)
	if errors.Is(err, ErrUnknownTag) {
		return nil
	}
	return err
}
