package journal

import (
	"path/filepath"

	"github.com/ConnerAdamsMaine/PTree/internal/cache"
	"github.com/ConnerAdamsMaine/PTree/internal/logger"
)

// ApplyResult counts the mutations one batch performed.
type ApplyResult struct {
	Created  int
	Modified int
	Deleted  int
	Ignored  int
}

// Total returns the number of records that mutated the cache.
func (r *ApplyResult) Total() int {
	return r.Created + r.Modified + r.Deleted
}

// Apply replays a batch of change records onto the store, strictly in the
// order the reader produced them. Non-directory records are ignored. The
// caller updates last_scan and the journal state after a successful batch.
func Apply(store *cache.Store, records []Record, log *logger.Logger) (*ApplyResult, error) {
	res := &ApplyResult{}

	for _, rec := range records {
		if !rec.IsDirectory {
			res.Ignored++
			continue
		}

		switch rec.Change {
		case Created:
			created, err := applyCreate(store, rec)
			if err != nil {
				return res, err
			}
			if created {
				res.Created++
			}
		case Modified:
			modified, err := applyModify(store, rec)
			if err != nil {
				return res, err
			}
			if modified {
				res.Modified++
			}
		case Deleted, Renamed:
			// A rename is conservatively a delete at the observed path;
			// the journal's matching create restores the new path.
			deleted, err := applyDelete(store, rec, log)
			if err != nil {
				return res, err
			}
			if deleted {
				res.Deleted++
			}
		case SecurityChanged, PermissionsChanged:
			entry, err := store.Get(rec.Path)
			if err != nil {
				return res, err
			}
			if entry != nil {
				entry.Modified = rec.Timestamp
				store.BufferEntry(entry)
				res.Modified++
			}
		default:
			res.Ignored++
		}
	}

	store.Flush()
	return res, nil
}

// applyCreate synthesises an entry for a new directory and links it into
// its parent's children when the parent is cached.
func applyCreate(store *cache.Store, rec Record) (bool, error) {
	existing, err := store.Get(rec.Path)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	name := filepath.Base(rec.Path)
	store.BufferEntry(&cache.Entry{
		Path:     rec.Path,
		Name:     name,
		Modified: rec.Timestamp,
		Children: []string{},
	})

	parent, err := store.Get(filepath.Dir(rec.Path))
	if err != nil {
		return false, err
	}
	if parent != nil && !parent.HasChild(name) {
		parent.Children = append(parent.Children, name)
		store.BufferEntry(parent)
	}
	return true, nil
}

func applyModify(store *cache.Store, rec Record) (bool, error) {
	entry, err := store.Get(rec.Path)
	if err != nil {
		return false, err
	}
	if entry == nil {
		// Unknown directory, treat as create.
		return applyCreate(store, rec)
	}
	entry.Modified = rec.Timestamp
	store.BufferEntry(entry)
	return true, nil
}

func applyDelete(store *cache.Store, rec Record, log *logger.Logger) (bool, error) {
	existed := store.Has(rec.Path)
	store.RemoveSubtree(rec.Path)

	name := filepath.Base(rec.Path)
	parent, err := store.Get(filepath.Dir(rec.Path))
	if err != nil {
		return false, err
	}
	if parent != nil {
		if parent.HasChild(name) {
			parent.RemoveChild(name)
			store.BufferEntry(parent)
		}
	} else if existed {
		log.Debug().Str("path", rec.Path).Msg("deleted entry had no cached parent")
	}
	return existed, nil
}
