package keyValStore

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/cultivate-vcs/cultivate/pkg/types"
)

var log *logrus.Logger

type StoreConfig struct {
	Paths            []string // absolute paths; at the moment only the first path is used
	MinimumFreeSpace int      // in GB
	Logger           *logrus.Logger
}

// KeyValStore wraps BadgerDB with the durability and idempotence guarantees
// the object store relies on: synchronous writes and absent-only upserts.
type KeyValStore struct {
	config   StoreConfig
	badgerDB *badger.DB
}

func NewKeyValStore(config StoreConfig) (*KeyValStore, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log = config.Logger

	err := config.checkConfig()
	if err != nil {
		return nil, fmt.Errorf("error checking config for KeyValStore: %w", err)
	}

	opts := badger.DefaultOptions(config.Paths[0])
	opts.Logger = nil
	opts.ValueLogFileSize = 1024 * 1024 * 100 // 100MB value log files
	// Writes must be durable before they are acknowledged; object ids are
	// handed to callers as soon as Write returns.
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("error opening BadgerDB at %s: %w", config.Paths[0], err)
	}

	if err := displayDiskUsage(config.Paths); err != nil {
		log.Warn("could not determine disk usage: ", err)
	}

	return &KeyValStore{
		config:   config,
		badgerDB: db,
	}, nil
}

func (k *KeyValStore) Close() error {
	return k.badgerDB.Close()
}

// Write unconditionally sets key to content.
func (k *KeyValStore) Write(key []byte, content []byte) error {
	return k.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set(key, content)
	})
}

// WriteIfAbsent persists content under key only if the key does not exist
// yet. Writing byte-identical content twice is a no-op success; concurrent
// writers of the same content converge on one stored value.
func (k *KeyValStore) WriteIfAbsent(key []byte, content []byte) error {
	return k.badgerDB.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, content)
	})
}

// Read returns a copy of the value stored under key, or types.ErrNotFound.
func (k *KeyValStore) Read(key []byte) ([]byte, error) {
	var content []byte
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return types.ErrNotFound
			}
			return err
		}
		content, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

// Clean runs Badger's value log garbage collection until there is nothing
// left to rewrite.
func (k *KeyValStore) Clean() error {
	for {
		err := k.badgerDB.RunValueLogGC(0.5)
		if err == nil {
			continue
		}
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		return fmt.Errorf("error cleaning db: %w", err)
	}
}

// ScanPrefix returns all keys and values stored under the given prefix.
func (k *KeyValStore) ScanPrefix(prefix []byte) ([][][]byte, error) {
	var keysAndValues [][][]byte
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			keysAndValues = append(keysAndValues, [][]byte{key, value})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keysAndValues, nil
}

// Exists is a non-failing existence check.
func (k *KeyValStore) Exists(key []byte) (bool, error) {
	var exists bool
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			exists = true
			return nil
		}
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	return exists, err
}
