package store

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// Migration is one schema version. Up creates the tables it introduces and
// Down drops them again.
type Migration struct {
	Version int
	Name    string
	Tables  []Table
}

// Migrations lists every schema version in order.
var Migrations = []Migration{
	{1, "users and sync queue", []Table{TableUsers, TableSyncQueue}},
	{2, "settings cache", []Table{TableSettings, TableTaxRates, TablePaymentMethods, TableBusinessHours, TableSyncMeta}},
	{3, "products cache", []Table{TableProducts}},
	{4, "categories cache", []Table{TableCategories}},
	{5, "modifiers cache", []Table{TableModifiers}},
	{6, "recipes cache", []Table{TableRecipes}},
	{7, "orders", []Table{TableOrders, TableOrderItems, TableOrderNumbers}},
	{8, "payments", []Table{TablePayments}},
	{9, "sessions", []Table{TableSessions}},
	{10, "kitchen dispatch queue", []Table{TableDispatchQueue}},
}

var versionKey = []byte("version")

func (m Migration) up(tx *bolt.Tx) error {
	for _, t := range m.Tables {
		if _, err := tx.CreateBucketIfNotExists([]byte(t)); err != nil {
			return err
		}
	}
	return nil
}

func (m Migration) down(tx *bolt.Tx) error {
	for _, t := range m.Tables {
		if err := tx.DeleteBucket([]byte(t)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
	}
	return nil
}

func readVersion(tx *bolt.Tx) int {
	b := tx.Bucket([]byte(schemaBucket))
	if b == nil {
		return 0
	}
	v := b.Get(versionKey)
	if len(v) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(v))
}

func writeVersion(tx *bolt.Tx, version int) error {
	b, err := tx.CreateBucketIfNotExists([]byte(schemaBucket))
	if err != nil {
		return err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(version))
	return b.Put(versionKey, buf)
}

// Version returns the schema version currently applied.
func (db *DB) Version() (int, error) {
	var v int
	err := db.bolt.View(func(tx *bolt.Tx) error {
		v = readVersion(tx)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: read schema version: %w", ErrStorage, err)
	}
	return v, nil
}

// MigrateUp applies every pending migration in one transaction and returns those applied.
func (db *DB) MigrateUp() ([]Migration, error) {
	var applied []Migration
	err := db.bolt.Update(func(tx *bolt.Tx) error {
		current := readVersion(tx)
		for _, m := range Migrations {
			if m.Version <= current {
				continue
			}
			if err := m.up(tx); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
			}
			applied = append(applied, m)
			current = m.Version
		}
		return writeVersion(tx, current)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: migrate up: %w", ErrStorage, err)
	}
	return applied, nil
}

// MigrateDown rolls back the latest applied migration. It returns nil when
// nothing is applied.
func (db *DB) MigrateDown() (*Migration, error) {
	var rolled *Migration
	err := db.bolt.Update(func(tx *bolt.Tx) error {
		current := readVersion(tx)
		if current == 0 {
			return nil
		}
		for i := len(Migrations) - 1; i >= 0; i-- {
			m := Migrations[i]
			if m.Version != current {
				continue
			}
			if err := m.down(tx); err != nil {
				return fmt.Errorf("rollback %d (%s): %w", m.Version, m.Name, err)
			}
			rolled = &m
			prev := 0
			if i > 0 {
				prev = Migrations[i-1].Version
			}
			return writeVersion(tx, prev)
		}
		return fmt.Errorf("unknown schema version %d", current)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: migrate down: %w", ErrStorage, err)
	}
	return rolled, nil
}
