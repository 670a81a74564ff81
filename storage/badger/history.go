package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/versed/core"
	"github.com/poiesic/versed/storage"
)

// historyStore implements storage.HistoryStore for BadgerDB.
// Turns of one session share a key prefix and a global sequence orders them.
type historyStore struct {
	backend *Backend
	seq     *badger.Sequence
}

var _ storage.HistoryStore = (*historyStore)(nil)

// NewHistoryStore creates a history store on an open backend.
func NewHistoryStore(backend *Backend) (storage.HistoryStore, error) {
	return newHistoryStore(backend)
}

func newHistoryStore(backend *Backend) (*historyStore, error) {
	seq, err := backend.GetSequence(historySeq)
	if err != nil {
		return nil, err
	}
	return &historyStore{
		backend: backend,
		seq:     seq,
	}, nil
}

// Close releases the sequence. The backend is closed by its owner.
func (s *historyStore) Close() error {
	return s.seq.Release()
}

// AppendTurns writes all turns in one transaction.
func (s *historyStore) AppendTurns(ctx context.Context, sessionID string, turns ...core.Turn) error {
	if err := core.ValidateSessionID(sessionID); err != nil {
		return err
	}
	for i := range turns {
		if err := core.ValidateTurn(&turns[i]); err != nil {
			return err
		}
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, turn := range turns {
			seq, err := nextID(s.seq)
			if err != nil {
				return err
			}
			if turn.Timestamp.IsZero() {
				turn.Timestamp = now
			}
			if err := tx.Set(makeHistoryKey(sessionID, seq), storage.MarshalTurn(sessionID, turn)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Turns returns the session's turns in append order.
func (s *historyStore) Turns(ctx context.Context, sessionID string) ([]core.Turn, error) {
	turns := []core.Turn{}
	err := s.scanSession(ctx, sessionID, func(key []byte, turn core.Turn) {
		turns = append(turns, turn)
	})
	return turns, err
}

// ClearSession deletes every turn stored for the session.
func (s *historyStore) ClearSession(ctx context.Context, sessionID string) error {
	var keys [][]byte
	err := s.scanSession(ctx, sessionID, func(key []byte, _ core.Turn) {
		keys = append(keys, key)
	})
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.backend.DeleteKeys(ctx, keys)
}

// scanSession visits the session's turns in key order. Records written under
// a colliding session hash are skipped.
func (s *historyStore) scanSession(ctx context.Context, sessionID string, fn func(key []byte, turn core.Turn)) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeSessionPrefix(sessionID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			var owner string
			var turn core.Turn
			if err := item.Value(func(val []byte) error {
				var err error
				owner, turn, err = storage.UnmarshalTurn(val)
				return err
			}); err != nil {
				return err
			}
			if owner != sessionID {
				continue
			}
			fn(item.KeyCopy(nil), turn)
		}
		return nil
	}, false)
}
