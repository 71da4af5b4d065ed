package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/sudomode/core"
	"github.com/layer-3/sudomode/ports"
	"go.etcd.io/bbolt"
)

var sessionsBucket = []byte("sessions")

// BoltStore is a BBolt implementation of the SessionStore interface.
// Sessions survive restarts.
type BoltStore struct {
	db   *bbolt.DB
	opts options
}

type boltRecord struct {
	Values    map[string]string `json:"values"`
	ExpiresAt time.Time         `json:"expires_at"`
}

var _ ports.SessionStore = (*BoltStore)(nil)

// NewBoltStore creates a session store backed by the given BBolt database
func NewBoltStore(db *bbolt.DB, opts ...Option) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions bucket: %w", err)
	}
	return &BoltStore{db: db, opts: buildOptions(opts)}, nil
}

// NewBoltStoreFromFile opens a BBolt database at path and returns a session store on top of it
func NewBoltStoreFromFile(path string, opts ...Option) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := NewBoltStore(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BBolt database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Create starts an empty session
func (s *BoltStore) Create(ctx context.Context) (ports.Session, error) {
	id := uuid.New().String()
	rec := boltRecord{Values: map[string]string{}, ExpiresAt: s.opts.expiry()}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return putRecord(tx, id, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &boltSession{id: id, store: s}, nil
}

// Load returns the session with the given ID
func (s *BoltStore) Load(ctx context.Context, id string) (ports.Session, error) {
	if _, err := s.read(id); err != nil {
		return nil, err
	}
	return &boltSession{id: id, store: s}, nil
}

// Destroy removes a session
func (s *BoltStore) Destroy(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionsBucket).Delete([]byte(id))
	})
}

func (s *BoltStore) read(id string) (boltRecord, error) {
	var rec boltRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(sessionsBucket).Get([]byte(id))
		if data == nil {
			return core.ErrSessionNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return boltRecord{}, err
	}
	if s.opts.expired(rec.ExpiresAt) {
		_ = s.Destroy(context.Background(), id)
		return boltRecord{}, core.ErrSessionNotFound
	}
	return rec, nil
}

// update applies fn to the stored record inside a single write transaction
func (s *BoltStore) update(id string, fn func(rec *boltRecord)) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data := tx.Bucket(sessionsBucket).Get([]byte(id))
		if data == nil {
			return core.ErrSessionNotFound
		}
		var rec boltRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if s.opts.expired(rec.ExpiresAt) {
			return core.ErrSessionNotFound
		}
		if rec.Values == nil {
			rec.Values = map[string]string{}
		}
		fn(&rec)
		return putRecord(tx, id, rec)
	})
}

func putRecord(tx *bbolt.Tx, id string, rec boltRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return tx.Bucket(sessionsBucket).Put([]byte(id), data)
}

type boltSession struct {
	id    string
	store *BoltStore
}

func (b *boltSession) ID() string {
	return b.id
}

func (b *boltSession) Get(ctx context.Context, key string) (string, bool, error) {
	rec, err := b.store.read(b.id)
	if err != nil {
		return "", false, err
	}
	value, ok := rec.Values[key]
	return value, ok, nil
}

func (b *boltSession) Set(ctx context.Context, key, value string) error {
	return b.store.update(b.id, func(rec *boltRecord) {
		rec.Values[key] = value
		if !rec.ExpiresAt.IsZero() {
			rec.ExpiresAt = b.store.opts.expiry()
		}
	})
}

func (b *boltSession) Delete(ctx context.Context, key string) error {
	return b.store.update(b.id, func(rec *boltRecord) {
		delete(rec.Values, key)
	})
}
