package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/specialistvlad/causalgrid/internal/nodestore"
)

var auditSeqKey = []byte("meta/audit-seq")

// Store implements nodestore.Store on BadgerDB.
type Store struct {
	db  *badger.DB
	gc  *gcRunner
	seq *badger.Sequence

	// putMu serialises version appends so that the next per-node sequence
	// number is computed against a stable prefix.
	putMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// Open opens (or creates) a history store.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	seq, err := db.GetSequence(auditSeqKey, 64)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("allocate audit sequence: %w", err)
	}
	s := &Store{db: db, seq: seq}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc, err = startGC(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			seq.Release()
			db.Close()
			return nil, fmt.Errorf("start GC runner: %w", err)
		}
	}
	return s, nil
}

func nodePrefix(id nodeid.ID) []byte {
	return []byte("node/" + string(id) + "/")
}

func versionKey(id nodeid.ID, seq int) []byte {
	return []byte(fmt.Sprintf("node/%s/%010d", id, seq))
}

func auditKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("audit/%020d", seq))
}

// scanVersions iterates id's versions in key order.
func scanVersions(txn *badger.Txn, id nodeid.ID, fn func(*model.Node) error) error {
	prefix := nodePrefix(id)
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 16})
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var n model.Node
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &n)
		}); err != nil {
			return fmt.Errorf("decode version %s: %w", it.Item().Key(), err)
		}
		if err := fn(&n); err != nil {
			return err
		}
	}
	return nil
}

// PutVersion implements nodestore.Store.
func (s *Store) PutVersion(ctx context.Context, n *model.Node) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.putMu.Lock()
	defer s.putMu.Unlock()

	appended := false
	err := s.db.Update(func(txn *badger.Txn) error {
		count := 0
		var latest *model.Node
		if err := scanVersions(txn, n.ID, func(v *model.Node) error {
			count++
			latest = v
			return nil
		}); err != nil {
			return err
		}
		if latest != nil && latest.Fingerprint() == n.Fingerprint() {
			return nil
		}
		raw, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("encode node %s: %w", n.ID, err)
		}
		appended = true
		return txn.Set(versionKey(n.ID, count+1), raw)
	})
	if err != nil {
		return false, fmt.Errorf("put version of %s: %w", n.ID, err)
	}
	return appended, nil
}

// Versions implements nodestore.Store.
func (s *Store) Versions(ctx context.Context, id nodeid.ID) ([]*model.Node, error) {
	out := []*model.Node{}
	err := s.db.View(func(txn *badger.Txn) error {
		return scanVersions(txn, id, func(n *model.Node) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out = append(out, n)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read versions of %s: %w", id, err)
	}
	return out, nil
}

// Latest implements nodestore.Store.
func (s *Store) Latest(ctx context.Context, id nodeid.ID) (*model.Node, bool, error) {
	versions, err := s.Versions(ctx, id)
	if err != nil || len(versions) == 0 {
		return nil, false, err
	}
	return versions[len(versions)-1], true, nil
}

// AppendAudit implements nodestore.Store.
func (s *Store) AppendAudit(ctx context.Context, entries ...model.AuditEntry) ([]model.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored := make([]model.AuditEntry, len(entries))
	err := s.db.Update(func(txn *badger.Txn) error {
		for i, e := range entries {
			next, err := s.seq.Next()
			if err != nil {
				return fmt.Errorf("next audit sequence: %w", err)
			}
			// Badger sequences start at zero; audit Seq starts at one.
			e.Seq = next + 1
			raw, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := txn.Set(auditKey(e.Seq), raw); err != nil {
				return err
			}
			stored[i] = e
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("append audit: %w", err)
	}
	return stored, nil
}

// Audit implements nodestore.Store.
func (s *Store) Audit(ctx context.Context) ([]model.AuditEntry, error) {
	prefix := []byte("audit/")
	var out []model.AuditEntry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 64})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e model.AuditEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read audit: %w", err)
	}
	return out, nil
}

// Close stops GC, releases the sequence and closes the database. Safe to
// call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.gc != nil {
			s.gc.stop()
		}
		var errs []error
		if err := s.seq.Release(); err != nil {
			errs = append(errs, err)
		}
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

var _ nodestore.Store = (*Store)(nil)
