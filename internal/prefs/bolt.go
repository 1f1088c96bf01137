package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// boltOpenTimeout bounds the wait for the file lock held by another process.
const boltOpenTimeout = 1 * time.Second

// Bolt is a Store backed by a bbolt file with one bucket per namespace.
type Bolt struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the bbolt file at path.
func OpenBolt(path string) (*Bolt, error) {
	if path == "" {
		return nil, fmt.Errorf("opening bolt store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating bolt directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	return &Bolt{db: db}, nil
}

// Begin opens namespace. The bucket is created on first write.
func (b *Bolt) Begin(namespace string, readOnly bool) (Namespace, error) {
	if namespace == "" {
		return nil, ErrEmptyNamespace
	}
	return &boltNamespace{handle: handle{name: namespace, readOnly: readOnly}, db: b.db}, nil
}

// Close closes the bbolt file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

type boltNamespace struct {
	handle
	db *bbolt.DB
}

func (n *boltNamespace) GetString(key, def string) string {
	if n.checkRead() != nil {
		return def
	}
	value := def
	_ = n.db.View(func(tx *bbolt.Tx) error { //nolint:errcheck // closure never fails
		bucket := tx.Bucket([]byte(n.name))
		if bucket == nil {
			return nil
		}
		if data := bucket.Get([]byte(key)); data != nil {
			value = string(data)
		}
		return nil
	})
	return value
}

func (n *boltNamespace) PutString(key, value string) error {
	if err := n.checkWrite(key); err != nil {
		return err
	}
	return n.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(n.name))
		if err != nil {
			return fmt.Errorf("failed to create namespace bucket: %w", err)
		}
		return bucket.Put([]byte(key), []byte(value))
	})
}

func (n *boltNamespace) Remove(key string) error {
	if err := n.checkWrite(key); err != nil {
		return err
	}
	return n.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(n.name))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
}
