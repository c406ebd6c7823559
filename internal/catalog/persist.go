package catalog

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// Persisted keys.
const (
	KeyCart     = "catalog-cart"
	KeyWishlist = "catalog-wishlist"
	KeyViewMode = "catalog-view-mode"
)

// Storage is a small key/value store surviving restarts.
type Storage interface {
	Get(key string) (value []byte, ok bool, err error)
	Set(key string, value []byte) error
}

// MemoryStorage is a Storage kept in memory.
type MemoryStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (s *MemoryStorage) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return slices.Clone(v), ok, nil
}

func (s *MemoryStorage) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = slices.Clone(value)
	return nil
}

var boltBucket = []byte("catalog")

// BoltStorage is a Storage in a bbolt file.
type BoltStorage struct {
	db *bbolt.DB
}

var _ Storage = (*BoltStorage)(nil)

// OpenBoltStorage opens or creates the database at path.
func OpenBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create bucket")
	}
	return &BoltStorage{db: db}, nil
}

func (s *BoltStorage) Get(key string) (value []byte, ok bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(boltBucket).Get([]byte(key))
		if v != nil {
			value, ok = slices.Clone(v), true
		}
		return nil
	})
	return value, ok, errors.Wrapf(err, "get %s", key)
}

func (s *BoltStorage) Set(key string, value []byte) error {
	return errors.Wrapf(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), value)
	}), "set %s", key)
}

// Close closes the database.
func (s *BoltStorage) Close() error {
	return s.db.Close()
}

// Persister mirrors the wishlist, cart and view mode of a Store into a
// Storage.
type Persister struct {
	store   *Store
	storage Storage
	lg      *zap.Logger
}

// NewPersister creates a Persister.
func NewPersister(store *Store, storage Storage, lg *zap.Logger) *Persister {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Persister{store: store, storage: storage, lg: lg}
}

// Restore loads persisted values into the store. Malformed values are
// logged and skipped.
func (p *Persister) Restore(_ context.Context) error {
	if raw, ok, err := p.storage.Get(KeyViewMode); err != nil {
		return errors.Wrap(err, "restore view mode")
	} else if ok {
		mode, err := jx.DecodeBytes(raw).Str()
		switch {
		case err != nil:
			p.lg.Warn("Skipping malformed view mode", zap.Error(err))
		case ViewMode(mode).Valid():
			p.store.Dispatch(SetViewMode{Mode: ViewMode(mode)})
		}
	}

	if raw, ok, err := p.storage.Get(KeyWishlist); err != nil {
		return errors.Wrap(err, "restore wishlist")
	} else if ok {
		ids, err := decodeWishlist(raw)
		if err != nil {
			p.lg.Warn("Skipping malformed wishlist", zap.Error(err))
		}
		for _, id := range ids {
			p.store.Dispatch(AddToWishlist{ID: id})
		}
	}

	if raw, ok, err := p.storage.Get(KeyCart); err != nil {
		return errors.Wrap(err, "restore cart")
	} else if ok {
		cart, err := decodeCart(raw)
		if err != nil {
			p.lg.Warn("Skipping malformed cart", zap.Error(err))
		}
		for _, id := range slices.Sorted(maps.Keys(cart)) {
			p.store.Dispatch(AddToCart{ID: id, Quantity: cart[id]})
		}
	}
	return nil
}

// Attach writes a key whenever its part of the state changes. The returned
// function detaches.
func (p *Persister) Attach() (detach func()) {
	return p.store.Subscribe(func(c Change) {
		if !c.Prev.Wishlist.Equal(c.Next.Wishlist) {
			p.write(KeyWishlist, encodeWishlist(c.Next.Wishlist))
		}
		if !maps.Equal(c.Prev.Cart, c.Next.Cart) {
			p.write(KeyCart, encodeCart(c.Next.Cart))
		}
		if c.Prev.ViewMode != c.Next.ViewMode {
			var e jx.Encoder
			e.Str(string(c.Next.ViewMode))
			p.write(KeyViewMode, e.Bytes())
		}
	})
}

func (p *Persister) write(key string, value []byte) {
	if err := p.storage.Set(key, value); err != nil {
		p.lg.Error("Failed to persist catalog state", zap.String("key", key), zap.Error(err))
	}
}

func encodeWishlist(s IDSet) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, id := range s.ids {
		e.Str(id)
	}
	e.ArrEnd()
	return e.Bytes()
}

func decodeWishlist(raw []byte) ([]string, error) {
	var ids []string
	err := jx.DecodeBytes(raw).Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.String {
			return d.Skip()
		}
		id, err := d.Str()
		if err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

// encodeCart writes {"id": quantity} with ids sorted.
func encodeCart(cart map[string]int) []byte {
	var e jx.Encoder
	e.ObjStart()
	for _, id := range slices.Sorted(maps.Keys(cart)) {
		e.FieldStart(id)
		e.Int(cart[id])
	}
	e.ObjEnd()
	return e.Bytes()
}

// decodeCart keeps entries whose quantity is a positive integer.
func decodeCart(raw []byte) (map[string]int, error) {
	cart := make(map[string]int)
	err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		if d.Next() != jx.Number {
			return d.Skip()
		}
		n, err := d.Num()
		if err != nil {
			return err
		}
		qty, err := n.Int64()
		if err != nil || qty <= 0 {
			return nil
		}
		cart[key] = int(qty)
		return nil
	})
	return cart, err
}
