package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/Mr-H-E/Monorite/core/types"
	"github.com/Mr-H-E/Monorite/storage"
)

var accountPrefix = []byte("monorite/account/")

// StateDB layers an in-memory write overlay with an undo journal on top of a
// key-value store. Engines mutate the overlay freely; a snapshot taken at
// operation entry can roll every mutation back, which gives buy/sell their
// all-or-nothing semantics. Commit flushes the overlay to durable storage.
type StateDB struct {
	mu      sync.Mutex
	db      storage.Database
	overlay map[string][]byte
	journal []journalEntry
}

type journalEntry struct {
	key     string
	prev    []byte
	existed bool
}

// NewStateDB wraps the provided database with an empty overlay.
func NewStateDB(db storage.Database) *StateDB {
	return &StateDB{
		db:      db,
		overlay: make(map[string][]byte),
	}
}

func (s *StateDB) currentValue(key []byte) ([]byte, bool, error) {
	if value, ok := s.overlay[string(key)]; ok {
		return value, true, nil
	}
	value, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// KVGet decodes the stored value for key into out. The boolean reports
// whether the key exists.
func (s *StateDB) KVGet(key []byte, out interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok, err := s.currentValue(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(value, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// KVPut encodes value and records it in the overlay, journaling the previous
// value so the write can be reverted.
func (s *StateDB) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed, err := s.currentValue(key)
	if err != nil {
		return err
	}
	s.journal = append(s.journal, journalEntry{key: string(key), prev: prev, existed: existed})
	s.overlay[string(key)] = encoded
	return nil
}

// Snapshot returns a revision identifier for the current journal position.
func (s *StateDB) Snapshot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.journal)
}

// RevertToSnapshot undoes every write performed after the given revision.
func (s *StateDB) RevertToSnapshot(revision int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if revision < 0 || revision > len(s.journal) {
		return
	}
	for i := len(s.journal) - 1; i >= revision; i-- {
		entry := s.journal[i]
		if entry.existed {
			s.overlay[entry.key] = entry.prev
		} else {
			delete(s.overlay, entry.key)
		}
	}
	s.journal = s.journal[:revision]
}

// Commit flushes the overlay to the underlying database and resets the
// journal. After Commit the written state can no longer be reverted.
func (s *StateDB) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range s.overlay {
		if err := s.db.Put([]byte(key), value); err != nil {
			return fmt.Errorf("state: commit %q: %w", key, err)
		}
	}
	s.overlay = make(map[string][]byte)
	s.journal = s.journal[:0]
	return nil
}

func accountKey(addr []byte) []byte {
	return append(append([]byte{}, accountPrefix...), addr...)
}

// GetAccount loads the account stored for addr. Missing accounts are
// returned as nil with no error; callers normalize via types.EnsureAccount.
func (s *StateDB) GetAccount(addr []byte) (*types.Account, error) {
	account := new(types.Account)
	ok, err := s.KVGet(accountKey(addr), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return types.EnsureAccount(account), nil
}

// PutAccount persists the account for addr into the overlay.
func (s *StateDB) PutAccount(addr []byte, account *types.Account) error {
	return s.KVPut(accountKey(addr), types.EnsureAccount(account))
}
